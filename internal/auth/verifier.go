// Package auth verifies bearer tokens into caller identities.
package auth

import (
	"context"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"

	"github.com/smartpick/smartpick/internal/model"
)

// ErrInvalidToken is returned (wrapped) for any token that fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// Verifier exchanges a bearer token for a verified identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (*model.Identity, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, token string) (*model.Identity, error) {
	return f(ctx, token)
}

// TokenHash derives a stable cache key from a token so raw tokens are never stored.
func TokenHash(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
