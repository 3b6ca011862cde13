package auth

import (
	"context"
	"time"

	"github.com/smartpick/smartpick/internal/metrics"
	"github.com/smartpick/smartpick/internal/model"
)

// DefaultIdentityCacheTTL caps how long a verified identity is reused.
const DefaultIdentityCacheTTL = 5 * time.Minute

// IdentityCache stores verified identities by token hash.
// GetIdentity returns (nil, nil) on a miss.
type IdentityCache interface {
	GetIdentity(ctx context.Context, key string) (*model.Identity, error)
	SetIdentity(ctx context.Context, key string, id *model.Identity, ttl time.Duration) error
	DeleteIdentity(ctx context.Context, key string) error
}

// CachingVerifier reuses verified identities until the cache TTL or the token
// expiry, whichever comes first. Failed verifications are never cached, and
// an entry found past its token expiry is evicted before re-verifying.
type CachingVerifier struct {
	next    Verifier
	cache   IdentityCache
	ttl     time.Duration
	metrics metrics.Recorder
	now     func() time.Time
}

// NewCachingVerifier wraps next with cache.
func NewCachingVerifier(next Verifier, cache IdentityCache, ttl time.Duration, recorder metrics.Recorder) *CachingVerifier {
	if ttl <= 0 {
		ttl = DefaultIdentityCacheTTL
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CachingVerifier{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		metrics: recorder,
		now:     time.Now,
	}
}

// Verify consults the cache before delegating to the wrapped verifier.
func (v *CachingVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	key := TokenHash(token)
	now := v.now()

	// Cache errors fall through to the upstream verifier.
	if id, _ := v.cache.GetIdentity(ctx, key); id != nil {
		if id.ExpiresAt.IsZero() || now.Before(id.ExpiresAt) {
			v.metrics.IncIdentityCacheHit()
			return id, nil
		}
		_ = v.cache.DeleteIdentity(ctx, key)
	}
	v.metrics.IncIdentityCacheMiss()

	id, err := v.next.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	ttl := v.ttl
	if !id.ExpiresAt.IsZero() {
		if remaining := id.ExpiresAt.Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl > 0 {
		_ = v.cache.SetIdentity(ctx, key, id, ttl)
	}

	return id, nil
}
