package handler

// Every error response has the same shape:
//
//	{"error": "<message shown to the visitor>"}
//
// writeError is the only place where apperror classes become status
// codes.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/holiday-postcards/internal/apperror"
)

// MsgInvalidJSON answers any body that is not a JSON object.
const MsgInvalidJSON = "Invalid JSON payload."

// maxBodyBytes bounds request bodies; the forms are a few hundred bytes.
const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are gone already; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeRaw relays an upstream JSON body unchanged.
func writeRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError maps err to a status code:
//
//	ErrValidation → 400
//	ErrConfig     → 500
//	ErrAuth       → 500
//	ErrUpstream   → the upstream status (502 when unknown)
//	anything else → 500 with a generic message
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrConfig), errors.Is(err, apperror.ErrAuth):
			status = http.StatusInternalServerError
		case errors.Is(err, apperror.ErrUpstream):
			status = appErr.Status
			if status == 0 {
				status = http.StatusBadGateway
			}
		}

		writeJSON(w, status, ErrorResponse{Error: appErr.Message})
		return
	}

	// Never leak internal details.
	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: "An internal error occurred",
	})
}

// decodeObject reads a JSON object body. Anything else (malformed JSON,
// arrays, null, oversize bodies) is a validation error.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var obj map[string]any
	dec := json.NewDecoder(body)
	if err := dec.Decode(&obj); err != nil {
		return nil, apperror.ValidationFailed("", MsgInvalidJSON)
	}
	if obj == nil {
		return nil, apperror.ValidationFailed("", MsgInvalidJSON)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperror.ValidationFailed("", MsgInvalidJSON)
	}
	return obj, nil
}
