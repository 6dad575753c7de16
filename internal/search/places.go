package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/holiday-postcards/internal/apperror"
)

// DefaultPlacesURL is the Places API (New) autocomplete endpoint.
const DefaultPlacesURL = "https://places.googleapis.com/v1/places:autocomplete"

// PlacesFieldMask limits the autocomplete response to what the address box
// renders.
const PlacesFieldMask = "suggestions.placePrediction.placeId," +
	"suggestions.placePrediction.text," +
	"suggestions.placePrediction.structuredFormat"

const (
	msgPlacesKeyMissing = "Google Places API key is not configured."
	msgInputTooShort    = "Input must contain at least 3 characters."
	msgPlacesFailed     = "Failed to fetch addresses."
)

// Request defaults applied when the client omits a field or sends the
// wrong JSON type.
var (
	DefaultPrimaryTypes = []any{"street_address"}
	DefaultLanguageCode = "en"
	DefaultRegionCode   = "US"
)

// PlacesClient forwards address autocomplete requests.
type PlacesClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPlacesClient creates a PlacesClient. An empty endpoint means
// DefaultPlacesURL; a nil httpClient means http.DefaultClient.
func NewPlacesClient(apiKey, endpoint string, httpClient *http.Client, logger *slog.Logger) *PlacesClient {
	if endpoint == "" {
		endpoint = DefaultPlacesURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PlacesClient{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Ready fails when no API key is configured.
func (c *PlacesClient) Ready() error {
	if c.apiKey == "" {
		return apperror.MissingConfig(msgPlacesKeyMissing)
	}
	return nil
}

type placesRequest struct {
	Input                string `json:"input"`
	IncludedPrimaryTypes []any  `json:"includedPrimaryTypes"`
	LanguageCode         string `json:"languageCode"`
	RegionCode           string `json:"regionCode"`
}

// buildPlacesRequest applies the trimming and defaults to a decoded
// client body.
func buildPlacesRequest(raw map[string]any) (placesRequest, error) {
	input, _ := raw["input"].(string)
	input = strings.TrimSpace(input)
	if !longEnough(input) {
		return placesRequest{}, apperror.ValidationFailed("input", msgInputTooShort)
	}

	req := placesRequest{
		Input:                input,
		IncludedPrimaryTypes: DefaultPrimaryTypes,
		LanguageCode:         DefaultLanguageCode,
		RegionCode:           DefaultRegionCode,
	}
	if types, ok := raw["includedPrimaryTypes"].([]any); ok {
		req.IncludedPrimaryTypes = types
	}
	if lang, ok := raw["languageCode"].(string); ok {
		req.LanguageCode = lang
	}
	if region, ok := raw["regionCode"].(string); ok {
		req.RegionCode = region
	}
	return req, nil
}

// Autocomplete forwards a decoded client body and returns the upstream
// JSON unchanged.
func (c *PlacesClient) Autocomplete(ctx context.Context, raw map[string]any) (json.RawMessage, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	payload, err := buildPlacesRequest(raw)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("search/places: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search/places: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", PlacesFieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("places request failed", slog.String("error", err.Error()))
		return nil, apperror.Upstream(http.StatusBadGateway, msgPlacesFailed)
	}
	defer resp.Body.Close()

	return relay(resp, msgPlacesFailed, c.logger)
}
