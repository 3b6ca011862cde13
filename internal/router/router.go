// Package router wires handlers and middleware into the HTTP surface.
package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartpick/smartpick/internal/auth"
	"github.com/smartpick/smartpick/internal/handler"
	"github.com/smartpick/smartpick/internal/middleware"
)

// RecommendScope is the rate-limit bucket scope of the legacy increment endpoint.
const RecommendScope = "recommend"

// Config holds router dependencies that are not handlers.
type Config struct {
	Logger   *slog.Logger
	Verifier auth.Verifier

	// Limiter guards the legacy increment endpoint. Nil disables limiting.
	Limiter        middleware.IPLimiter
	RateLimit      bool
	RateLimitRPS   float64
	RateLimitBurst int

	// LegacyRecommend mounts PATCH /queries/{id}/recommend.
	LegacyRecommend bool

	// Registerer receives the HTTP collectors; Gatherer serves /metrics.
	// Either may be nil.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	IsDevelopment      bool
	CORSAllowedOrigins []string
	MaxRequestBodySize int64
}

// Handlers groups the resource handlers mounted by New.
type Handlers struct {
	Root            *handler.Handler
	Health          *handler.HealthHandler
	Queries         *handler.QueryHandler
	Recommendations *handler.RecommendationHandler
}

// New builds the chi router.
func New(cfg Config, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Set before any Route call so sub-routers inherit them.
	r.NotFound(h.Root.NotFound)
	r.MethodNotAllowed(h.Root.MethodNotAllowed)

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	if cfg.Registerer != nil {
		r.Use(middleware.NewHTTPMetrics(cfg.Registerer).Middleware)
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxAge:         middleware.DefaultCORSConfig().MaxAge,
	}))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
	}

	r.Get("/", h.Root.Root)
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", handler.NewMetricsHandler(cfg.Gatherer))
	}

	requireAuth := middleware.Auth(middleware.AuthConfig{
		Logger:   cfg.Logger,
		Verifier: cfg.Verifier,
	})

	r.Route("/queries", func(r chi.Router) {
		r.Get("/", h.Queries.List)
		r.With(requireAuth).Post("/", h.Queries.Create)
		r.Get("/{id}", h.Queries.Get)
		r.With(requireAuth).Delete("/{id}", h.Queries.Delete)

		if cfg.LegacyRecommend {
			r.With(middleware.RateLimitIP(middleware.RateLimitConfig{
				Logger:  cfg.Logger,
				Limiter: cfg.Limiter,
				Enabled: cfg.RateLimit,
				Scope:   RecommendScope,
				RPS:     cfg.RateLimitRPS,
				Burst:   cfg.RateLimitBurst,
			})).Patch("/{id}/recommend", h.Queries.Recommend)
		}
	})

	r.Get("/top-queries", h.Queries.Top)

	r.Route("/recommendations", func(r chi.Router) {
		r.Get("/", h.Recommendations.List)
		r.With(requireAuth).Post("/", h.Recommendations.Create)
		r.With(requireAuth).Delete("/{id}", h.Recommendations.Delete)
	})

	r.With(requireAuth).Get("/recommendationsForUser", h.Recommendations.ForUser)

	return r
}
