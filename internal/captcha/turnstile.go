// Package captcha verifies Cloudflare Turnstile tokens sent with the
// signup form.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/holiday-postcards/internal/apperror"
)

// DefaultVerifyURL is Turnstile's siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// MsgFailed is returned to the visitor for any rejected or missing token.
const MsgFailed = "Captcha verification failed."

// Turnstile checks tokens against the siteverify API.
type Turnstile struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTurnstile creates a verifier for secret. An empty verifyURL means
// DefaultVerifyURL.
func NewTurnstile(secret, verifyURL string, httpClient *http.Client, logger *slog.Logger) *Turnstile {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Turnstile{
		secret:     secret,
		verifyURL:  verifyURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

// Verify returns nil when Turnstile accepts token. A missing or rejected
// token is a validation error; an unreachable or broken verifier is an
// upstream error.
func (t *Turnstile) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return apperror.ValidationFailed("turnstileToken", MsgFailed)
	}

	form := url.Values{}
	form.Set("secret", t.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("captcha: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Error("turnstile request failed", slog.String("error", err.Error()))
		return apperror.Upstream(http.StatusBadGateway, MsgFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Error("turnstile returned non-200", slog.Int("status", resp.StatusCode))
		return apperror.Upstream(http.StatusBadGateway, MsgFailed)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.logger.Error("turnstile response undecodable", slog.String("error", err.Error()))
		return apperror.Upstream(http.StatusBadGateway, MsgFailed)
	}

	if !result.Success {
		t.logger.Info("captcha rejected", slog.Any("error_codes", result.ErrorCodes))
		return apperror.ValidationFailed("turnstileToken", MsgFailed)
	}
	return nil
}
