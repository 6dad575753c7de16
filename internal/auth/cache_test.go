package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, ok := c.Load(ctx)
	assert.False(t, ok, "fresh cache must be empty")

	tok := &oauth2.Token{AccessToken: "abc", Expiry: time.Now().Add(time.Hour)}
	c.Store(ctx, tok)

	got, ok := c.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "abc", got.AccessToken)
}

// fakeRedis implements redisCommander on a map.
type fakeRedis struct {
	data    map[string]string
	ttl     map[string]time.Duration
	getErr  error
	setErr  error
	setHits int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.setHits++
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func newTestRedisCache(rdb *fakeRedis, now time.Time) *RedisCache {
	c := NewRedisCache(rdb, "", slog.New(slog.DiscardHandler))
	c.now = func() time.Time { return now }
	return c
}

func TestRedisCache_RoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	rdb := newFakeRedis()
	c := newTestRedisCache(rdb, now)
	ctx := context.Background()

	c.Store(ctx, &oauth2.Token{AccessToken: "abc", TokenType: "Bearer", Expiry: now.Add(time.Hour)})

	assert.Equal(t, time.Hour, rdb.ttl[DefaultRedisKey])

	var stored cachedToken
	require.NoError(t, json.Unmarshal([]byte(rdb.data[DefaultRedisKey]), &stored))
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), stored.ExpiresAt)

	got, ok := c.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "abc", got.AccessToken)
	assert.True(t, got.Expiry.Equal(now.Add(time.Hour)))
}

func TestRedisCache_MissAndErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		c := newTestRedisCache(newFakeRedis(), time.Now())
		_, ok := c.Load(ctx)
		assert.False(t, ok)
	})

	t.Run("read error is a miss", func(t *testing.T) {
		rdb := newFakeRedis()
		rdb.getErr = errors.New("connection refused")
		c := newTestRedisCache(rdb, time.Now())
		_, ok := c.Load(ctx)
		assert.False(t, ok)
	})

	t.Run("garbage value is a miss", func(t *testing.T) {
		rdb := newFakeRedis()
		rdb.data[DefaultRedisKey] = "{not json"
		c := newTestRedisCache(rdb, time.Now())
		_, ok := c.Load(ctx)
		assert.False(t, ok)
	})

	t.Run("expired token is not written", func(t *testing.T) {
		now := time.Now()
		rdb := newFakeRedis()
		c := newTestRedisCache(rdb, now)
		c.Store(ctx, &oauth2.Token{AccessToken: "old", Expiry: now.Add(-time.Second)})
		assert.Equal(t, 0, rdb.setHits)
	})

	t.Run("write error is swallowed", func(t *testing.T) {
		now := time.Now()
		rdb := newFakeRedis()
		rdb.setErr = errors.New("READONLY")
		c := newTestRedisCache(rdb, now)
		c.Store(ctx, &oauth2.Token{AccessToken: "abc", Expiry: now.Add(time.Hour)})
		assert.Equal(t, 1, rdb.setHits)
	})
}
