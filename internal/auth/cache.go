package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// TokenCache stores the most recent access token. Implementations only
// hold the value; freshness is decided by TokenProvider.
type TokenCache interface {
	Load(ctx context.Context) (*oauth2.Token, bool)
	Store(ctx context.Context, tok *oauth2.Token)
}

// MemoryCache keeps the token in process memory. It does not survive a
// restart and is not shared between replicas.
type MemoryCache struct {
	mu  sync.RWMutex
	tok *oauth2.Token
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Load(_ context.Context) (*oauth2.Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tok == nil {
		return nil, false
	}
	return c.tok, true
}

func (c *MemoryCache) Store(_ context.Context, tok *oauth2.Token) {
	c.mu.Lock()
	c.tok = tok
	c.mu.Unlock()
}

// redisCommander is the slice of *redis.Client that RedisCache needs.
type redisCommander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache shares the token between replicas. Errors are logged and
// treated as a cache miss; the provider then exchanges a new token.
type RedisCache struct {
	rdb    redisCommander
	key    string
	now    func() time.Time
	logger *slog.Logger
}

// DefaultRedisKey is the key the token is stored under.
const DefaultRedisKey = "postcards:google-access-token"

func NewRedisCache(rdb redisCommander, key string, logger *slog.Logger) *RedisCache {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisCache{rdb: rdb, key: key, now: time.Now, logger: logger}
}

type cachedToken struct {
	Token     string `json:"token"`
	Type      string `json:"type"`
	ExpiresAt int64  `json:"expiresAt"` // epoch millis
}

func (c *RedisCache) Load(ctx context.Context) (*oauth2.Token, bool) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("token cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}

	var ct cachedToken
	if err := json.Unmarshal(raw, &ct); err != nil || ct.Token == "" {
		return nil, false
	}
	return &oauth2.Token{
		AccessToken: ct.Token,
		TokenType:   ct.Type,
		Expiry:      time.UnixMilli(ct.ExpiresAt),
	}, true
}

func (c *RedisCache) Store(ctx context.Context, tok *oauth2.Token) {
	ttl := tok.Expiry.Sub(c.now())
	if ttl <= 0 {
		return
	}

	payload, err := json.Marshal(cachedToken{
		Token:     tok.AccessToken,
		Type:      tok.TokenType,
		ExpiresAt: tok.Expiry.UnixMilli(),
	})
	if err != nil {
		return
	}

	if err := c.rdb.Set(ctx, c.key, payload, ttl).Err(); err != nil {
		c.logger.Warn("token cache write failed", slog.String("error", err.Error()))
	}
}
