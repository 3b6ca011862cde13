// Package middleware provides HTTP middleware components.
package middleware

import (
	"context"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client-supplied request ids.
const maxRequestIDLength = 128

// RequestID tags each request with an id, reusing a well-formed client
// X-Request-ID and minting a UUID otherwise. The id is stored under chi's
// request id key so chimiddleware.GetReqID sees it too.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), chimiddleware.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID accepts short ids of visible ASCII so they are safe to log.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}
