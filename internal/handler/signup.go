package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/holiday-postcards/internal/middleware"
	"github.com/sakif/holiday-postcards/internal/model"
	"github.com/sakif/holiday-postcards/internal/service"
)

// SignupService is what SignupHandler needs from *service.SignupService.
type SignupService interface {
	Ready() error
	Submit(ctx context.Context, raw map[string]any, remoteIP string) error
	List(ctx context.Context) ([]model.SignupEntry, error)
	Export(ctx context.Context, w io.Writer) error
}

// SignupHandler serves /api/signup.
type SignupHandler struct {
	signups SignupService
	now     func() time.Time
	logger  *slog.Logger
}

// NewSignupHandler creates a SignupHandler.
func NewSignupHandler(signups SignupService, logger *slog.Logger) *SignupHandler {
	return &SignupHandler{
		signups: signups,
		now:     time.Now,
		logger:  logger,
	}
}

// SubmitResponse is the 201 body.
type SubmitResponse struct {
	Success bool `json:"success"`
}

// ListResponse is the 200 body of GET /api/signup.
type ListResponse struct {
	Entries []model.SignupEntry `json:"entries"`
}

// HandleCreate stores one signup.
//
// HTTP: POST /api/signup
// REQUEST BODY: {"name", "address", "postcardTheme", "contact"?, "songSuggestion"?, "turnstileToken"?}
//
// Store configuration is checked before the body is read, so a
// misconfigured server answers 500 even to malformed requests.
func (h *SignupHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := h.signups.Ready(); err != nil {
		h.logger.Error("signup store not configured", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	raw, err := decodeObject(w, r)
	if err != nil {
		h.logger.Warn("invalid signup JSON")
		writeError(w, err)
		return
	}

	if err := h.signups.Submit(r.Context(), raw, middleware.ClientIP(r)); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResponse{Success: true})
}

// HandleList returns every signup, decrypted, in store order.
//
// HTTP: GET /api/signup
func (h *SignupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if err := h.signups.Ready(); err != nil {
		h.logger.Error("signup store not configured", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	entries, err := h.signups.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Entries: entries})
}

// HandleExport downloads every signup as CSV.
//
// HTTP: GET /api/signup/export
//
// The body is buffered so that a failed read still gets a JSON error
// instead of a truncated file.
func (h *SignupHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if err := h.signups.Ready(); err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.signups.Export(r.Context(), &buf); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+service.ExportFilename(h.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
