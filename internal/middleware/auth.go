package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/smartpick/smartpick/internal/auth"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier auth.Verifier
}

// Auth returns a middleware that verifies the bearer token and injects the
// caller identity into the request context.
//
// A missing or malformed Authorization header yields 401. A token the
// verifier rejects yields 403. Either way the wrapped handler is not called.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeMessage(w, http.StatusUnauthorized, MsgUnauthorized)
				return
			}

			id, err := cfg.Verifier.Verify(r.Context(), token)
			if err != nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "invalid_token"),
					slog.String("error", err.Error()),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeMessage(w, http.StatusForbidden, MsgInvalidToken)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("subject", id.Subject),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
