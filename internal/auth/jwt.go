package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/smartpick/smartpick/internal/model"
)

// JWTVerifier validates HS256 tokens signed with a shared secret.
// It stands in for the identity platform in development and tests.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

type identityClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.StandardClaims
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify parses and validates the token.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	claims := &identityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}
	if claims.ExpiresAt == 0 {
		return nil, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}

	return &model.Identity{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	}, nil
}

// Issue signs a token for id that expires after ttl.
func (v *JWTVerifier) Issue(id model.Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := identityClaims{
		Email: id.Email,
		Name:  id.Name,
		StandardClaims: jwt.StandardClaims{
			Subject:   id.Subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
