// Package search proxies the address and song autocomplete boxes to
// Google Places and YouTube Data so the API keys stay on the server.
//
// Each call is a single forward-and-relay: no caching, no retries. A
// successful upstream body is returned byte for byte; a failed one is
// turned into apperror.Upstream carrying the upstream status and its
// error.message when present.
package search

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sakif/holiday-postcards/internal/apperror"
)

// MinQueryLength is the shortest trimmed input either proxy forwards.
const MinQueryLength = 3

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 4 << 20

func longEnough(s string) bool {
	return utf8.RuneCountInString(s) >= MinQueryLength
}

type errorBody struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// relay reads resp and returns its body when the status is 2xx and the
// body is JSON. Anything else becomes an upstream error; fallback is used
// when the body has no error.message.
func relay(resp *http.Response, fallback string, logger *slog.Logger) (json.RawMessage, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		logger.Error("reading upstream body failed", slog.String("error", err.Error()))
		return nil, apperror.Upstream(http.StatusBadGateway, fallback)
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if !json.Valid(raw) {
			logger.Error("upstream returned non-JSON body", slog.Int("status", resp.StatusCode))
			return nil, apperror.Upstream(http.StatusBadGateway, fallback)
		}
		return json.RawMessage(raw), nil
	}

	message := fallback
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != nil && strings.TrimSpace(body.Error.Message) != "" {
		message = body.Error.Message
	}

	logger.Warn("upstream search error",
		slog.Int("status", resp.StatusCode),
		slog.String("message", message),
	)
	return nil, apperror.Upstream(resp.StatusCode, message)
}
