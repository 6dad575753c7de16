package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/holiday-postcards/internal/apperror"
	"github.com/sakif/holiday-postcards/internal/model"
)

type fakeTokens struct {
	err   error
	calls int
}

func (f *fakeTokens) Token(context.Context) (*oauth2.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: "test-token", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}, nil
}

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Auth   string
	Body   []byte
}

// fakeSheets records every request and answers with status/body.
type fakeSheets struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func newFakeSheets(t *testing.T, status int, body string) *fakeSheets {
	t.Helper()
	f := &fakeSheets{status: status, body: body}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  q,
			Auth:   r.Header.Get("Authorization"),
			Body:   raw,
		})
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeSheets) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestStore(f *fakeSheets, tokens TokenProvider) *Store {
	cfg := Config{SpreadsheetID: "sheet-123", Range: "Christmas!A1:F", BaseURL: f.URL}
	return New(cfg, tokens, f.Client(), slog.New(slog.DiscardHandler))
}

func TestReady(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "configured", cfg: Config{SpreadsheetID: "id", Range: "A1:F"}, ok: true},
		{name: "missing id", cfg: Config{Range: "A1:F"}},
		{name: "missing range", cfg: Config{SpreadsheetID: "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.cfg, &fakeTokens{}, nil, slog.New(slog.DiscardHandler)).Ready()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, apperror.ErrConfig))
		})
	}
}

func TestAppend(t *testing.T) {
	f := newFakeSheets(t, http.StatusOK, `{"updates":{"updatedRows":1}}`)
	s := newTestStore(f, &fakeTokens{})

	row := model.SignupRow{"2025-12-01T00:00:00.000Z", "e1", "e2", "e3", "", "Jingle Bells"}
	require.NoError(t, s.Append(context.Background(), row))

	req := f.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v4/spreadsheets/sheet-123/values/Christmas!A1:F:append", req.Path)
	assert.Equal(t, "USER_ENTERED", req.Query["valueInputOption"])
	assert.Equal(t, "INSERT_ROWS", req.Query["insertDataOption"])
	assert.Equal(t, "Bearer test-token", req.Auth)

	var body appendRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	require.Len(t, body.Values, 1)
	assert.Equal(t, []string(row), body.Values[0])
}

func TestAppend_UpstreamErrorMessage(t *testing.T) {
	f := newFakeSheets(t, http.StatusForbidden, `{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`)
	s := newTestStore(f, &fakeTokens{})

	err := s.Append(context.Background(), model.SignupRow{"t"})

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusForbidden, appErr.Status)
	assert.Equal(t, "The caller does not have permission", appErr.Message)
}

func TestAppend_UpstreamErrorFallback(t *testing.T) {
	f := newFakeSheets(t, http.StatusInternalServerError, `oops`)
	s := newTestStore(f, &fakeTokens{})

	err := s.Append(context.Background(), model.SignupRow{"t"})

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, msgAppendFailed, appErr.Message)
}

func TestAppend_TokenErrorPassesThrough(t *testing.T) {
	f := newFakeSheets(t, http.StatusOK, `{}`)
	tokenErr := apperror.AuthFailed("Google OAuth failed: invalid_grant", nil)
	s := newTestStore(f, &fakeTokens{err: tokenErr})

	err := s.Append(context.Background(), model.SignupRow{"t"})

	assert.True(t, errors.Is(err, apperror.ErrAuth))
	assert.Empty(t, f.requests, "no data call without a token")
}

func TestAppend_MissingConfigSkipsToken(t *testing.T) {
	tokens := &fakeTokens{}
	s := New(Config{}, tokens, nil, slog.New(slog.DiscardHandler))

	err := s.Append(context.Background(), model.SignupRow{"t"})

	assert.True(t, errors.Is(err, apperror.ErrConfig))
	assert.Equal(t, 0, tokens.calls)
}

func TestList(t *testing.T) {
	f := newFakeSheets(t, http.StatusOK, `{
		"range": "Christmas!A1:F3",
		"majorDimension": "ROWS",
		"values": [
			["2025-12-01T00:00:00.000Z", "e1", "e2", "e3", "e4", "Silent Night"],
			[],
			["2025-12-02T00:00:00.000Z", "e1", 42, true]
		]
	}`)
	s := newTestStore(f, &fakeTokens{})

	rows, err := s.List(context.Background())
	require.NoError(t, err)

	req := f.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/v4/spreadsheets/sheet-123/values/Christmas!A1:F", req.Path)
	assert.Equal(t, "UNFORMATTED_VALUE", req.Query["valueRenderOption"])
	assert.Equal(t, "Bearer test-token", req.Auth)

	require.Len(t, rows, 3)
	assert.Equal(t, "Silent Night", rows[0].Cell(model.ColSongSuggestion))
	assert.True(t, rows[1].IsEmpty())
	assert.Equal(t, model.SignupRow{"2025-12-02T00:00:00.000Z", "e1", "42", "true"}, rows[2])
}

func TestList_EmptySheet(t *testing.T) {
	f := newFakeSheets(t, http.StatusOK, `{"range":"Christmas!A1:F"}`)
	s := newTestStore(f, &fakeTokens{})

	rows, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestList_UpstreamError(t *testing.T) {
	f := newFakeSheets(t, http.StatusNotFound, `{"error":{"message":"Requested entity was not found."}}`)
	s := newTestStore(f, &fakeTokens{})

	_, err := s.List(context.Background())

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "Requested entity was not found.", appErr.Message)
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "x", cellString("x"))
	assert.Equal(t, "1.5", cellString(1.5))
	assert.Equal(t, "45000", cellString(float64(45000)))
	assert.Equal(t, "false", cellString(false))
}
