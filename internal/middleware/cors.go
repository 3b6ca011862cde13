package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to make cross-origin requests.
	// "*" allows any origin.
	AllowedOrigins []string
	// MaxAge is the value for Access-Control-Max-Age (in seconds).
	MaxAge int
}

// DefaultCORSConfig returns the defaults used when no origins are configured.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		MaxAge:         86400, // 24 hours
	}
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing,
// including preflight OPTIONS requests. Credentials are never allowed, so a
// bearer token must be sent explicitly in the Authorization header.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultCORSConfig().AllowedOrigins
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			RequestIDHeader,
		},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           cfg.MaxAge,
	})
}
