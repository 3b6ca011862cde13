// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Identity providers.
const (
	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	Port   int    `env:"PORT" envDefault:"3000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Storage
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`

	// MongoDB. MONGO_URI wins over the DB_USER/DB_PASS/MONGO_HOST triple.
	MongoURI          string `env:"MONGO_URI"`
	DBUser            string `env:"DB_USER"`
	DBPass            string `env:"DB_PASS"`
	MongoHost         string `env:"MONGO_HOST" envDefault:"cluster0.mpdvixn.mongodb.net"`
	MongoDatabase     string `env:"MONGO_DATABASE" envDefault:"smartPickDB"`
	MongoTransactions bool   `env:"MONGO_TRANSACTIONS" envDefault:"false"`

	// PostgreSQL
	DatabaseURL string `env:"DATABASE_URL"`

	// Cache (Redis). Empty disables identity caching, rate limiting and the reconcile lock.
	RedisURL string `env:"REDIS_URL"`

	// Identity
	AuthProvider           string        `env:"AUTH_PROVIDER" envDefault:"firebase"`
	FirebaseServiceAccount string        `env:"FIREBASE_SERVICE_ACCOUNT"`
	FirebaseProjectID      string        `env:"FIREBASE_PROJECT_ID"`
	AuthJWTSecret          string        `env:"AUTH_JWT_SECRET"`
	IdentityCacheTTL       time.Duration `env:"IDENTITY_CACHE_TTL" envDefault:"5m"`

	// Legacy PATCH /queries/{id}/recommend
	LegacyRecommendEnabled    bool    `env:"LEGACY_RECOMMEND_ENABLED" envDefault:"true"`
	RateLimitRecommendEnabled bool    `env:"RATE_LIMIT_RECOMMEND_ENABLED" envDefault:"true"`
	RateLimitRecommendRPS     float64 `env:"RATE_LIMIT_RECOMMEND_RPS" envDefault:"1"`
	RateLimitRecommendBurst   int     `env:"RATE_LIMIT_RECOMMEND_BURST" envDefault:"5"`

	// CORS configuration
	// Comma-separated list of allowed origins; "*" allows any origin.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Reconciler period. Zero disables the worker.
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"0s"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// MongoConnectionURI returns MONGO_URI when set, otherwise an Atlas SRV URI
// assembled from DB_USER, DB_PASS and MONGO_HOST.
func (c *Config) MongoConnectionURI() string {
	if c.MongoURI != "" {
		return c.MongoURI
	}
	if c.DBUser == "" || c.DBPass == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "mongodb+srv",
		User:     url.UserPassword(c.DBUser, c.DBPass),
		Host:     c.MongoHost,
		Path:     "/",
		RawQuery: "retryWrites=true&w=majority&appName=Cluster0",
	}
	return u.String()
}

// Validate checks that the selected store driver and identity provider have
// the settings they need.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoConnectionURI() == "" {
			errs = append(errs, errors.New("MONGO_URI or DB_USER and DB_PASS are required for the mongo store"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.AuthProvider {
	case AuthFirebase:
		if c.FirebaseServiceAccount == "" {
			errs = append(errs, errors.New("FIREBASE_SERVICE_ACCOUNT is required for the firebase provider"))
		}
	case AuthJWT:
		if c.AuthJWTSecret == "" {
			errs = append(errs, errors.New("AUTH_JWT_SECRET is required for the jwt provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Port))
	}
	if c.ReconcileInterval < 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must not be negative"))
	}
	if c.RateLimitRecommendEnabled && (c.RateLimitRecommendRPS <= 0 || c.RateLimitRecommendBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_RECOMMEND_RPS and RATE_LIMIT_RECOMMEND_BURST must be positive"))
	}

	return errors.Join(errs...)
}

// Load reads .env if present, parses environment variables and returns a Config.
// Variables already set in the environment take precedence over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
