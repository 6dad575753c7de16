// Package server is the composition root: it builds every dependency from
// the config, mounts the routes and runs the HTTP server.
//
//	config → fieldcrypt.Cipher
//	       → auth.TokenProvider (memory or Redis cache) → sheets.Store
//	         or sqlite.DB
//	       → service.SignupService → handler.SignupHandler
//	       → search.PlacesClient / search.YouTubeClient → handler.SearchHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/holiday-postcards/internal/auth"
	"github.com/sakif/holiday-postcards/internal/captcha"
	"github.com/sakif/holiday-postcards/internal/config"
	"github.com/sakif/holiday-postcards/internal/fieldcrypt"
	"github.com/sakif/holiday-postcards/internal/handler"
	"github.com/sakif/holiday-postcards/internal/middleware"
	"github.com/sakif/holiday-postcards/internal/repository"
	sheetsRepo "github.com/sakif/holiday-postcards/internal/repository/sheets"
	sqliteRepo "github.com/sakif/holiday-postcards/internal/repository/sqlite"
	"github.com/sakif/holiday-postcards/internal/search"
	"github.com/sakif/holiday-postcards/internal/service"
)

// upstreamTimeout bounds every outbound call to Google and Cloudflare.
const upstreamTimeout = 20 * time.Second

// Server owns the router and the resources that must be closed on
// shutdown.
type Server struct {
	router     *chi.Mux
	config     *config.Config
	logger     *slog.Logger
	httpClient *http.Client

	store repository.SignupRepository
	redis *redis.Client // nil unless TOKEN_CACHE=redis
}

// Option customises a Server. Tests use it to point upstream calls at
// fakes.
type Option func(*Server)

// WithHTTPClient sets the client used for every outbound call.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.httpClient = c }
}

// New wires every dependency. Missing sheet settings do not fail here;
// the signup endpoints answer 500 until they are set.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		router:     chi.NewRouter(),
		config:     cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: upstreamTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.UsingDevSecret {
		logger.Warn("DATA_ENCRYPTION_SECRET not set, using the development fallback secret")
	}

	cipher, err := fieldcrypt.New(cfg.EncryptionSecret, logger)
	if err != nil {
		return nil, fmt.Errorf("creating field cipher: %w", err)
	}

	store, err := s.openStore()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.store = store

	s.setupRoutes(cipher)

	return s, nil
}

// openStore builds the configured signup store.
func (s *Server) openStore() (repository.SignupRepository, error) {
	switch s.config.StoreBackend {
	case config.StoreSQLite:
		if dir := filepath.Dir(s.config.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(s.config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		s.logger.Info("signup store: sqlite", slog.String("path", s.config.SQLitePath))
		return db, nil

	default:
		cache, err := s.tokenCache()
		if err != nil {
			return nil, err
		}
		account := auth.ServiceAccount{
			Email:      s.config.ServiceAccountEmail,
			PrivateKey: s.config.ServiceAccountKey,
			Scope:      auth.SheetsScope,
			TokenURL:   s.config.TokenURL,
		}
		tokens := auth.NewTokenProvider(account, cache, s.logger, auth.WithHTTPClient(s.httpClient))

		store := sheetsRepo.New(sheetsRepo.Config{
			SpreadsheetID: s.config.SheetID,
			Range:         s.config.SheetRange,
			BaseURL:       s.config.SheetsBaseURL,
		}, tokens, s.httpClient, s.logger)

		if err := store.Ready(); err != nil {
			s.logger.Warn("Google Sheet not configured, signup endpoints will return 500",
				slog.Bool("hasSheetId", s.config.SheetID != ""),
				slog.Bool("hasRange", s.config.SheetRange != ""),
			)
		}
		if err := account.Validate(); err != nil {
			s.logger.Warn("service account not configured", slog.String("error", err.Error()))
		}
		return store, nil
	}
}

// tokenCache returns the shared Redis cache when configured, otherwise
// a per-process memory cache.
func (s *Server) tokenCache() (auth.TokenCache, error) {
	if s.config.TokenCache != config.CacheRedis {
		return auth.NewMemoryCache(), nil
	}

	opts, err := redis.ParseURL(s.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	s.redis = redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		// Not fatal: every cache miss just means another token exchange.
		s.logger.Warn("redis unreachable, token cache will miss", slog.String("error", err.Error()))
	}

	return auth.NewRedisCache(s.redis, "", s.logger), nil
}

// setupRoutes mounts middleware and routes.
//
// ROUTES:
//
//	GET  /healthz                   → liveness
//	POST /api/signup                → store a signup (rate limited)
//	GET  /api/signup                → list signups (admin)
//	GET  /api/signup/export         → CSV download (admin; development or admin hash only)
//	POST /api/places/autocomplete   → address proxy
//	GET  /api/youtube/search        → song proxy
func (s *Server) setupRoutes(cipher *fieldcrypt.Cipher) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	var svcOpts []service.Option
	if s.config.TurnstileSecret != "" {
		verifier := captcha.NewTurnstile(s.config.TurnstileSecret, s.config.TurnstileVerifyURL, s.httpClient, s.logger)
		svcOpts = append(svcOpts, service.WithCaptcha(verifier))
	}
	signupService := service.NewSignupService(s.store, cipher, s.logger, svcOpts...)
	signupHandler := handler.NewSignupHandler(signupService, s.logger)

	searchHandler := handler.NewSearchHandler(
		search.NewPlacesClient(s.config.PlacesAPIKey, s.config.PlacesURL, s.httpClient, s.logger),
		search.NewYouTubeClient(s.config.YouTubeAPIKey, s.config.YouTubeURL, s.httpClient, s.logger),
	)

	guard := auth.NewAdminGuard(s.config.AdminUsername, s.config.AdminPasswordHash, auth.NewPasswordService(), s.logger)
	if !guard.Enabled() {
		s.logger.Warn("ADMIN_PASSWORD_HASH not set, GET /api/signup is public")
	}

	limiter := middleware.NewRateLimiter(s.config.SignupRateLimit.RequestsPerSecond, s.config.SignupRateLimit.Burst)

	s.router.Get("/healthz", handler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.With(limiter.Limit).Post("/signup", signupHandler.HandleCreate)
		r.With(guard.RequireAdmin).Get("/signup", signupHandler.HandleList)
		if s.config.IsDevelopment() || guard.Enabled() {
			r.With(guard.RequireAdmin).Get("/signup/export", signupHandler.HandleExport)
		}

		r.Post("/places/autocomplete", searchHandler.HandlePlaces)
		r.Get("/youtube/search", searchHandler.HandleYouTube)
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store and the Redis client.
func (s *Server) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests
// for up to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * upstreamTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.AppEnv),
			slog.String("store", s.config.StoreBackend),
			slog.String("tokenCache", s.config.TokenCache),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
