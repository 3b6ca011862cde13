package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/smartpick/smartpick/internal/cache"
)

// IPLimiter checks a per-IP token bucket.
type IPLimiter interface {
	CheckIPRateLimit(ctx context.Context, scope, ip string, ratePerSecond float64, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter IPLimiter
	Enabled bool
	// Scope separates buckets of different endpoints.
	Scope string
	RPS   float64 // Requests per second
	Burst int
}

// RateLimitIP returns middleware that rate limits requests per client IP.
// It is a pass-through when disabled or when no limiter is configured.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || cfg.Limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			result, err := cfg.Limiter.CheckIPRateLimit(r.Context(), cfg.Scope, ip, cfg.RPS, cfg.Burst)
			if err != nil {
				cfg.Logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("scope", cfg.Scope),
				)
				// Fail open - allow request
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := int(result.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}

				cfg.Logger.Warn("rate limit exceeded",
					slog.String("scope", cfg.Scope),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int("retry_after_seconds", retryAfter),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeMessage(w, http.StatusTooManyRequests,
					fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers for proxied requests.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
