// Package apperror defines the domain errors shared by every layer.
//
// Services return these; handlers translate them to HTTP status codes.
// Each AppError wraps one of the sentinels below so callers can use
// errors.Is to classify a failure without parsing messages.
package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrValidation = errors.New("validation error")
	ErrConfig     = errors.New("configuration error")
	ErrAuth       = errors.New("upstream authentication error")
	ErrUpstream   = errors.New("upstream error")
)

type AppError struct {
	Err     error  // sentinel used for classification
	Message string // human-readable message, returned to the client as-is
	Field   string // optional: field causing the error
	Status  int    // optional: upstream HTTP status to relay
	Cause   error  // optional: underlying error, for logs only
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// ValidationFailed reports a client input problem. Mapped to 400.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// MissingConfig reports a server-side configuration gap. Mapped to 500.
func MissingConfig(message string) *AppError {
	return &AppError{
		Err:     ErrConfig,
		Message: message,
	}
}

// AuthFailed reports a failed exchange with the OAuth2 token endpoint.
// Mapped to 500.
func AuthFailed(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: message,
		Cause:   cause,
	}
}

// Upstream reports a failed data call to a third-party API. The handler
// relays status; a zero status becomes 502 Bad Gateway.
func Upstream(status int, message string) *AppError {
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Status:  status,
	}
}
