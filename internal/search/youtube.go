package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/holiday-postcards/internal/apperror"
)

// DefaultYouTubeURL is the YouTube Data API v3 search endpoint.
const DefaultYouTubeURL = "https://www.googleapis.com/youtube/v3/search"

// Result count bounds for a video search.
const (
	DefaultMaxResults = 10
	MinMaxResults     = 1
	MaxMaxResults     = 25
)

const (
	msgYouTubeKeyMissing = "YouTube API key is not configured."
	msgQueryTooShort     = "Query must contain at least 3 characters."
	msgYouTubeFailed     = "Failed to fetch YouTube data."
)

// YouTubeClient forwards song searches.
type YouTubeClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewYouTubeClient creates a YouTubeClient. An empty endpoint means
// DefaultYouTubeURL; a nil httpClient means http.DefaultClient.
func NewYouTubeClient(apiKey, endpoint string, httpClient *http.Client, logger *slog.Logger) *YouTubeClient {
	if endpoint == "" {
		endpoint = DefaultYouTubeURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &YouTubeClient{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Search looks up videos matching query. maxResults is the raw query
// parameter; see ParseMaxResults.
func (c *YouTubeClient) Search(ctx context.Context, query, maxResults string) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, apperror.MissingConfig(msgYouTubeKeyMissing)
	}

	query = strings.TrimSpace(query)
	if !longEnough(query) {
		return nil, apperror.ValidationFailed("query", msgQueryTooShort)
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("search/youtube: parsing endpoint: %w", err)
	}
	q := u.Query()
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("maxResults", strconv.Itoa(ParseMaxResults(maxResults)))
	q.Set("q", query)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("search/youtube: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the key; log the cause only.
		c.logger.Error("youtube request failed", slog.String("error", unwrapURLError(err).Error()))
		return nil, apperror.Upstream(http.StatusBadGateway, msgYouTubeFailed)
	}
	defer resp.Body.Close()

	return relay(resp, msgYouTubeFailed, c.logger)
}

// ParseMaxResults reads the leading integer of s (after optional
// whitespace and sign) and clamps it to [MinMaxResults, MaxMaxResults].
// No digits, or a value of zero, gives DefaultMaxResults.
func ParseMaxResults(s string) int {
	s = strings.TrimLeft(s, " \t\n\r\f\v")

	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n, digits := 0, 0
	for ; digits < len(s) && s[digits] >= '0' && s[digits] <= '9'; digits++ {
		if n <= MaxMaxResults {
			n = n*10 + int(s[digits]-'0')
		}
	}
	if digits == 0 || n == 0 {
		return DefaultMaxResults
	}
	if neg {
		return MinMaxResults
	}
	return min(n, MaxMaxResults)
}

func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
