package auth

import (
	"context"

	"github.com/smartpick/smartpick/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// identityContextKey is the context key for the verified caller identity.
	identityContextKey contextKey = "identity"
)

// ContextWithIdentity adds the verified identity to the context.
func ContextWithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves the verified identity from the context.
// Returns nil if the request was not authenticated.
func IdentityFromContext(ctx context.Context) *model.Identity {
	id, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok {
		return nil
	}
	return id
}

// EmailFromContext is a convenience function to get the caller's email.
// Returns empty string if not authenticated.
func EmailFromContext(ctx context.Context) string {
	id := IdentityFromContext(ctx)
	if id == nil {
		return ""
	}
	return id.Email
}
