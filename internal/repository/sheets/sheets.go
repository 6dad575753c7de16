// Package sheets stores signup rows in a Google Sheets range.
//
// Two endpoints of the Sheets v4 REST API are used:
//
//	POST {base}/v4/spreadsheets/{id}/values/{range}:append
//	     ?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS
//	GET  {base}/v4/spreadsheets/{id}/values/{range}
//	     ?valueRenderOption=UNFORMATTED_VALUE
//
// Both authenticate with a bearer token from the service-account provider.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/sakif/holiday-postcards/internal/apperror"
	"github.com/sakif/holiday-postcards/internal/model"
	"github.com/sakif/holiday-postcards/internal/repository"
)

// DefaultBaseURL is the public Sheets API host.
const DefaultBaseURL = "https://sheets.googleapis.com"

const (
	msgMissingConfig = "Google Sheet configuration is missing."
	msgAppendFailed  = "Failed to write to Google Sheet."
	msgReadFailed    = "Failed to read Google Sheet."
)

var _ repository.SignupRepository = (*Store)(nil)

// TokenProvider returns a valid bearer token. *auth.TokenProvider
// satisfies it.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Config locates the target range.
type Config struct {
	SpreadsheetID string
	Range         string // A1 notation, e.g. "Christmas!A1:F"
	BaseURL       string
}

// Store is a SignupRepository backed by one spreadsheet range.
type Store struct {
	cfg        Config
	tokens     TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Store. httpClient is the base transport; nil means
// http.DefaultClient. The bearer header is added per request.
func New(cfg Config, tokens TokenProvider, httpClient *http.Client, logger *slog.Logger) *Store {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Store{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Ready fails when the spreadsheet id or range is not configured.
func (s *Store) Ready() error {
	if s.cfg.SpreadsheetID == "" || s.cfg.Range == "" {
		return apperror.MissingConfig(msgMissingConfig)
	}
	return nil
}

// Close is a no-op; the store holds no connections of its own.
func (s *Store) Close() error { return nil }

type appendRequest struct {
	Values [][]string `json:"values"`
}

// Append writes row after the last row of the range.
func (s *Store) Append(ctx context.Context, row model.SignupRow) error {
	if err := s.Ready(); err != nil {
		return err
	}

	client, err := s.authorizedClient(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(appendRequest{Values: [][]string{row}})
	if err != nil {
		return fmt.Errorf("sheets: encoding append body: %w", err)
	}

	q := url.Values{}
	q.Set("valueInputOption", "USER_ENTERED")
	q.Set("insertDataOption", "INSERT_ROWS")
	endpoint := s.valuesURL(":append") + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sheets: building append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Error("sheet append request failed", slog.String("error", err.Error()))
		return apperror.Upstream(http.StatusBadGateway, msgAppendFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return s.upstreamError(resp, msgAppendFailed, "sheet append error")
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type valuesResponse struct {
	Values [][]any `json:"values"`
}

// List returns every row of the range. Cells rendered as numbers or
// booleans are converted to their string form.
func (s *Store) List(ctx context.Context) ([]model.SignupRow, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	client, err := s.authorizedClient(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("valueRenderOption", "UNFORMATTED_VALUE")
	endpoint := s.valuesURL("") + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("sheets: building read request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Error("sheet read request failed", slog.String("error", err.Error()))
		return nil, apperror.Upstream(http.StatusBadGateway, msgReadFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, s.upstreamError(resp, msgReadFailed, "sheet read error")
	}

	var data valuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		s.logger.Error("sheet read response undecodable", slog.String("error", err.Error()))
		return nil, apperror.Upstream(http.StatusBadGateway, msgReadFailed)
	}

	rows := make([]model.SignupRow, 0, len(data.Values))
	for _, cells := range data.Values {
		row := make(model.SignupRow, len(cells))
		for i, c := range cells {
			row[i] = cellString(c)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// authorizedClient fetches a token and returns a client that sends it as
// "Authorization: Bearer <token>". Token errors are returned unchanged so
// the caller can tell them apart from data-call failures.
func (s *Store) authorizedClient(ctx context.Context) (*http.Client, error) {
	tok, err := s.tokens.Token(ctx)
	if err != nil {
		s.logger.Error("access token unavailable", slog.String("error", err.Error()))
		return nil, err
	}
	// oauth2.NewClient builds on the client stored under oauth2.HTTPClient.
	base := context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	return oauth2.NewClient(base, oauth2.StaticTokenSource(tok)), nil
}

func (s *Store) valuesURL(suffix string) string {
	return s.cfg.BaseURL + "/v4/spreadsheets/" + url.PathEscape(s.cfg.SpreadsheetID) +
		"/values/" + url.PathEscape(s.cfg.Range) + suffix
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// upstreamError relays the API's status and error.message, falling back to
// fallback when the body is not the expected JSON.
func (s *Store) upstreamError(resp *http.Response, fallback, logMsg string) error {
	raw, _ := io.ReadAll(resp.Body)
	message := fallback

	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != nil && body.Error.Message != "" {
		message = body.Error.Message
	}

	s.logger.Error(logMsg,
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(raw)),
	)
	return apperror.Upstream(resp.StatusCode, message)
}

func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(c)
	default:
		return fmt.Sprint(c)
	}
}
