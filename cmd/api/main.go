// Package main is the entrypoint for the SmartPick API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/smartpick/smartpick/internal/auth"
	"github.com/smartpick/smartpick/internal/cache"
	"github.com/smartpick/smartpick/internal/config"
	"github.com/smartpick/smartpick/internal/handler"
	"github.com/smartpick/smartpick/internal/metrics"
	"github.com/smartpick/smartpick/internal/middleware"
	"github.com/smartpick/smartpick/internal/reconcile"
	"github.com/smartpick/smartpick/internal/repository"
	"github.com/smartpick/smartpick/internal/router"
	"github.com/smartpick/smartpick/internal/server"
	"github.com/smartpick/smartpick/internal/service"
)

// startupTimeout bounds connecting to the store, Redis and the identity platform.
const startupTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	// Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(reg)

	// Initialize store
	store, err := openStore(ctx, cfg, reg, logger)
	if err != nil {
		os.Exit(1)
	}

	// Initialize cache. Every consumer takes an interface, so an absent
	// cache must stay an untyped nil.
	var (
		healthCache   handler.HealthChecker
		limiter       middleware.IPLimiter
		locker        reconcile.Locker
		identityCache auth.IdentityCache
		cacheClient   *cache.Cache
	)
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		healthCache, limiter, locker, identityCache = cacheClient, cacheClient, cacheClient, cacheClient
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, identity cache, rate limiting and reconcile lock disabled")
	}

	// Initialize identity verifier
	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize identity verifier",
			"provider", cfg.AuthProvider,
			"error", err,
		)
		os.Exit(1)
	}
	if identityCache != nil {
		verifier = auth.NewCachingVerifier(verifier, identityCache, cfg.IdentityCacheTTL, recorder)
	}
	logger.Info("identity verifier ready", "provider", cfg.AuthProvider)

	// Initialize services
	queryService := service.NewQueryService(store, recorder)
	recommendationService := service.NewRecommendationService(store, recorder)

	// Initialize handlers and router
	r := router.New(router.Config{
		Logger:             logger,
		Verifier:           verifier,
		Limiter:            limiter,
		RateLimit:          cfg.RateLimitRecommendEnabled,
		RateLimitRPS:       cfg.RateLimitRecommendRPS,
		RateLimitBurst:     cfg.RateLimitRecommendBurst,
		LegacyRecommend:    cfg.LegacyRecommendEnabled,
		Registerer:         reg,
		Gatherer:           reg,
		IsDevelopment:      cfg.IsDevelopment(),
		CORSAllowedOrigins: cfg.GetCORSAllowedOrigins(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, router.Handlers{
		Root:            handler.New(),
		Health:          handler.NewHealthHandler(cfg.StoreDriver, store, healthCache),
		Queries:         handler.NewQueryHandler(queryService, logger),
		Recommendations: handler.NewRecommendationHandler(recommendationService, logger),
	})

	// Create server
	srv := server.New(r, server.Options{
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, closed last.
	srv.OnShutdown("store", store.Close)
	if cacheClient != nil {
		srv.OnShutdown("redis", func(ctx context.Context) error {
			return cacheClient.Close()
		})
	}

	if cfg.ReconcileInterval > 0 {
		worker := reconcile.NewWorker(store, locker, logger, cfg.ReconcileInterval, recorder)
		go func() {
			if err := worker.Run(context.Background()); err != nil {
				logger.Error("reconcile worker error", "error", err)
			}
		}()
		srv.OnShutdown("reconciler", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.Port,
		"env", cfg.AppEnv,
		"store", cfg.StoreDriver,
		"legacy_recommend", cfg.LegacyRecommendEnabled,
		"reconcile_interval", cfg.ReconcileInterval,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore connects the configured record store. Errors are logged here so
// connection strings never leave this function unredacted.
func openStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		uri := cfg.MongoConnectionURI()
		store, err := repository.NewMongo(ctx, repository.MongoConfig{
			URI:          uri,
			Database:     cfg.MongoDatabase,
			Transactions: cfg.MongoTransactions,
		})
		if err != nil {
			logger.Error(
				"failed to connect to MongoDB",
				slog.String("error", sanitizeError(err, uri, cfg.DBPass)),
				slog.String("mongo_uri", redactURL(uri)),
			)
			return nil, err
		}
		logger.Info("connected to MongoDB",
			"database", cfg.MongoDatabase,
			"transactions", cfg.MongoTransactions,
		)
		return store, nil

	case config.StorePostgres:
		store, err := repository.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return nil, err
		}
		reg.MustRegister(metrics.NewPoolStatsCollector(store.Pool()))
		logger.Info("connected to database")
		return store, nil

	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemory(), nil
	}

	err := fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	logger.Error("failed to open store", "error", err)
	return nil, err
}

// newVerifier builds the identity verifier for the configured provider.
func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	switch cfg.AuthProvider {
	case config.AuthFirebase:
		return auth.NewFirebaseVerifier(ctx, cfg.FirebaseServiceAccount, cfg.FirebaseProjectID)
	case config.AuthJWT:
		return auth.NewJWTVerifier(cfg.AuthJWTSecret)
	}
	return nil, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "smartpick")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" || redacted == secret {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
