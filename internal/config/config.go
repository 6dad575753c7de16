// Package config loads server settings from the environment, after an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DevEncryptionSecret is used only when APP_ENV=development and no
// DATA_ENCRYPTION_SECRET is set.
const DevEncryptionSecret = "dev-christmas-secret"

// Store backends.
const (
	StoreSheets = "sheets"
	StoreSQLite = "sqlite"
)

// Token cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is everything the server reads from the environment.
type Config struct {
	Port   int
	AppEnv string

	LogLevel  string
	LogFormat string

	SheetID       string
	SheetRange    string
	SheetsBaseURL string

	ServiceAccountEmail string
	ServiceAccountKey   string // PEM, "\n" still escaped
	TokenURL            string

	EncryptionSecret string
	// UsingDevSecret is true when EncryptionSecret fell back to
	// DevEncryptionSecret.
	UsingDevSecret bool

	PlacesAPIKey  string
	PlacesURL     string
	YouTubeAPIKey string
	YouTubeURL    string

	StoreBackend string
	SQLitePath   string

	TokenCache string
	RedisURL   string

	TurnstileSecret    string
	TurnstileVerifyURL string

	AdminUsername     string
	AdminPasswordHash string

	SignupRateLimit RateLimitConfig
}

// RateLimitConfig is a token bucket per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// IsDevelopment reports whether APP_ENV is "development".
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads .env (if present) and then the process environment.
// Variables already set in the process win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, applying defaults and failing on
// values that cannot work.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if val, ok := lookup(key); ok {
			return strings.TrimSpace(val)
		}
		return def
	}

	cfg := &Config{}

	port, err := strconv.Atoi(get("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return nil, errors.New("config: PORT must be a valid TCP port")
	}
	cfg.Port = port

	cfg.AppEnv = strings.ToLower(get("APP_ENV", "production"))
	cfg.LogLevel = strings.ToLower(get("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(get("LOG_FORMAT", "text"))

	cfg.SheetID = get("GOOGLE_SHEET_ID", "")
	cfg.SheetRange = get("GOOGLE_SHEET_RANGE", "")
	cfg.SheetsBaseURL = get("SHEETS_API_BASE", "")

	cfg.ServiceAccountEmail = get("GOOGLE_SERVICE_ACCOUNT_EMAIL", "")
	cfg.ServiceAccountKey = get("GOOGLE_SERVICE_ACCOUNT_KEY", "")
	cfg.TokenURL = get("GOOGLE_TOKEN_URL", "")

	cfg.EncryptionSecret = get("DATA_ENCRYPTION_SECRET", "")
	if cfg.EncryptionSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, errors.New("config: DATA_ENCRYPTION_SECRET is required outside development")
		}
		cfg.EncryptionSecret = DevEncryptionSecret
		cfg.UsingDevSecret = true
	}

	cfg.PlacesAPIKey = get("GOOGLE_PLACES_API_KEY", "")
	if cfg.PlacesAPIKey == "" {
		cfg.PlacesAPIKey = get("GOOGLE_MAPS_API_KEY", "")
	}
	cfg.PlacesURL = get("PLACES_API_URL", "")
	cfg.YouTubeAPIKey = get("YOUTUBE_API_KEY", "")
	cfg.YouTubeURL = get("YOUTUBE_API_URL", "")

	cfg.StoreBackend = strings.ToLower(get("STORE_BACKEND", StoreSheets))
	switch cfg.StoreBackend {
	case StoreSheets, StoreSQLite:
	default:
		return nil, fmt.Errorf("config: STORE_BACKEND must be %q or %q", StoreSheets, StoreSQLite)
	}
	cfg.SQLitePath = get("SQLITE_PATH", "data/postcards.db")

	cfg.TokenCache = strings.ToLower(get("TOKEN_CACHE", CacheMemory))
	cfg.RedisURL = get("REDIS_URL", "")
	switch cfg.TokenCache {
	case CacheMemory:
	case CacheRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("config: REDIS_URL is required when TOKEN_CACHE=redis")
		}
	default:
		return nil, fmt.Errorf("config: TOKEN_CACHE must be %q or %q", CacheMemory, CacheRedis)
	}

	cfg.TurnstileSecret = get("TURNSTILE_SECRET_KEY", "")
	cfg.TurnstileVerifyURL = get("TURNSTILE_VERIFY_URL", "")

	cfg.AdminUsername = get("ADMIN_USERNAME", "admin")
	cfg.AdminPasswordHash = get("ADMIN_PASSWORD_HASH", "")

	rps, err := parseFloat(get("SIGNUP_RATE_LIMIT_RPS", ""), 0.2)
	if err != nil || rps <= 0 {
		return nil, errors.New("config: SIGNUP_RATE_LIMIT_RPS must be a positive number")
	}
	burst, err := strconv.Atoi(get("SIGNUP_RATE_LIMIT_BURST", "5"))
	if err != nil || burst <= 0 {
		return nil, errors.New("config: SIGNUP_RATE_LIMIT_BURST must be a positive integer")
	}
	cfg.SignupRateLimit = RateLimitConfig{RequestsPerSecond: rps, Burst: burst}

	return cfg, nil
}

func parseFloat(s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}
