package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/holiday-postcards/internal/apperror"
)

const (
	// jwtBearerGrant is the grant_type for exchanging a signed assertion.
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// RefreshSkew is how long before expiry a cached token stops being used.
	RefreshSkew = 60 * time.Second
)

// TokenProvider hands out bearer tokens for a service account.
//
// STATES:
//
//	NO_TOKEN ──exchange ok──▶ TOKEN_CACHED
//	TOKEN_CACHED ──now >= expiry-60s──▶ exchange again
//
// There is no lock around the exchange. Two requests that both see a cold
// cache will both call the token endpoint and the later Store wins. Either
// token is valid, so the only cost is one extra round trip.
type TokenProvider struct {
	account ServiceAccount
	cache   TokenCache
	client  *http.Client
	now     func() time.Time
	logger  *slog.Logger
}

// ProviderOption customises a TokenProvider. Mostly used by tests.
type ProviderOption func(*TokenProvider)

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *TokenProvider) { p.client = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *TokenProvider) { p.now = now }
}

// NewTokenProvider creates a provider. A nil cache means a fresh MemoryCache.
func NewTokenProvider(account ServiceAccount, cache TokenCache, logger *slog.Logger, opts ...ProviderOption) *TokenProvider {
	if cache == nil {
		cache = NewMemoryCache()
	}
	p := &TokenProvider{
		account: account,
		cache:   cache,
		client:  http.DefaultClient,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a bearer token that stays valid for at least RefreshSkew.
func (p *TokenProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	now := p.now()

	if tok, ok := p.cache.Load(ctx); ok && now.Before(tok.Expiry.Add(-RefreshSkew)) {
		return tok, nil
	}

	tok, err := p.exchange(ctx, now)
	if err != nil {
		return nil, err
	}

	p.cache.Store(ctx, tok)
	p.logger.Info("service account token refreshed",
		slog.Time("expiresAt", tok.Expiry),
	)
	return tok, nil
}

// TokenSource adapts the provider to oauth2.TokenSource, bound to ctx.
func (p *TokenProvider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return providerSource{ctx: ctx, p: p}
}

type providerSource struct {
	ctx context.Context
	p   *TokenProvider
}

func (s providerSource) Token() (*oauth2.Token, error) {
	return s.p.Token(s.ctx)
}

// tokenResponse is the subset of the token endpoint's JSON we use.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// exchange signs a new assertion and trades it for an access token.
func (p *TokenProvider) exchange(ctx context.Context, now time.Time) (*oauth2.Token, error) {
	assertion, err := p.account.SignAssertion(now)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.account.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("auth: building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperror.AuthFailed("Google OAuth failed: "+err.Error(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.AuthFailed("Google OAuth failed: reading response: "+err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(body))
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		p.logger.Error("token exchange rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", detail),
		)
		return nil, apperror.AuthFailed("Google OAuth failed: "+detail, nil)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, apperror.AuthFailed("Failed to retrieve Google access token.", err)
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return nil, apperror.AuthFailed("Failed to retrieve Google access token.", nil)
	}

	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tokenType,
		Expiry:      now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
