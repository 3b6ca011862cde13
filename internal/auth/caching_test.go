package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartpick/smartpick/internal/metrics"
	"github.com/smartpick/smartpick/internal/model"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*model.Identity
	ttls    map[string]time.Duration
	getErr  error
	deletes int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]*model.Identity{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) GetIdentity(ctx context.Context, key string) (*model.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[key], nil
}

func (c *mapCache) SetIdentity(ctx context.Context, key string, id *model.Identity, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = id
	c.ttls[key] = ttl
	return nil
}

func (c *mapCache) DeleteIdentity(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	delete(c.ttls, key)
	c.deletes++
	return nil
}

type countingVerifier struct {
	calls int
	id    *model.Identity
	err   error
}

func (v *countingVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	v.calls++
	return v.id, v.err
}

func TestCachingVerifier_ReusesIdentity(t *testing.T) {
	now := time.Now()
	upstream := &countingVerifier{id: &model.Identity{Email: "alice@example.com", ExpiresAt: now.Add(time.Hour)}}
	cache := newMapCache()
	rec := metrics.NewInMemory()
	v := NewCachingVerifier(upstream, cache, time.Minute, rec)
	v.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		id, err := v.Verify(context.Background(), "tok")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if id.Email != "alice@example.com" {
			t.Fatalf("Email = %q", id.Email)
		}
	}

	if upstream.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", upstream.calls)
	}
	if got := cache.ttls[TokenHash("tok")]; got != time.Minute {
		t.Errorf("cache ttl = %v, want 1m", got)
	}
	s := rec.Snapshot()
	if s.IdentityCacheHits != 2 || s.IdentityCacheMisses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", s.IdentityCacheHits, s.IdentityCacheMisses)
	}
}

func TestCachingVerifier_TTLBoundedByExpiry(t *testing.T) {
	now := time.Now()
	upstream := &countingVerifier{id: &model.Identity{Email: "alice@example.com", ExpiresAt: now.Add(30 * time.Second)}}
	cache := newMapCache()
	v := NewCachingVerifier(upstream, cache, time.Hour, nil)
	v.now = func() time.Time { return now }

	if _, err := v.Verify(context.Background(), "tok"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := cache.ttls[TokenHash("tok")]; got != 30*time.Second {
		t.Errorf("cache ttl = %v, want 30s", got)
	}
}

func TestCachingVerifier_ExpiredEntryIsIgnored(t *testing.T) {
	now := time.Now()
	cache := newMapCache()
	cache.entries[TokenHash("tok")] = &model.Identity{Email: "stale@example.com", ExpiresAt: now.Add(-time.Second)}
	upstream := &countingVerifier{err: ErrInvalidToken}
	v := NewCachingVerifier(upstream, cache, time.Hour, nil)
	v.now = func() time.Time { return now }

	if _, err := v.Verify(context.Background(), "tok"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
	if upstream.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", upstream.calls)
	}
	if _, ok := cache.entries[TokenHash("tok")]; ok || cache.deletes != 1 {
		t.Errorf("expired entry not evicted: deletes = %d", cache.deletes)
	}
}

func TestCachingVerifier_ExpiredEntryReplaced(t *testing.T) {
	now := time.Now()
	cache := newMapCache()
	cache.entries[TokenHash("tok")] = &model.Identity{Email: "alice@example.com", ExpiresAt: now.Add(-time.Second)}
	upstream := &countingVerifier{id: &model.Identity{Email: "alice@example.com", ExpiresAt: now.Add(time.Hour)}}
	v := NewCachingVerifier(upstream, cache, time.Minute, nil)
	v.now = func() time.Time { return now }

	id, err := v.Verify(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !id.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want fresh identity", id.ExpiresAt)
	}
	if cache.deletes != 1 {
		t.Errorf("deletes = %d, want 1", cache.deletes)
	}
	if got := cache.entries[TokenHash("tok")]; got != upstream.id {
		t.Errorf("cache entry = %+v, want fresh identity", got)
	}
}

func TestCachingVerifier_FailuresNotCached(t *testing.T) {
	cache := newMapCache()
	upstream := &countingVerifier{err: ErrInvalidToken}
	v := NewCachingVerifier(upstream, cache, time.Hour, nil)

	for i := 0; i < 2; i++ {
		if _, err := v.Verify(context.Background(), "bad"); err == nil {
			t.Fatal("expected error")
		}
	}
	if upstream.calls != 2 {
		t.Errorf("upstream calls = %d, want 2", upstream.calls)
	}
	if len(cache.entries) != 0 {
		t.Errorf("cache entries = %d, want 0", len(cache.entries))
	}
}

func TestCachingVerifier_FailsOpenOnCacheError(t *testing.T) {
	cache := newMapCache()
	cache.getErr = errors.New("redis down")
	upstream := &countingVerifier{id: &model.Identity{Email: "alice@example.com"}}
	v := NewCachingVerifier(upstream, cache, time.Hour, nil)

	id, err := v.Verify(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Email != "alice@example.com" {
		t.Errorf("Email = %q", id.Email)
	}
}

func TestTokenHash(t *testing.T) {
	a, b := TokenHash("one"), TokenHash("two")
	if a == b {
		t.Error("distinct tokens should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64", len(a))
	}
	if TokenHash("one") != a {
		t.Error("hash should be stable")
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if IdentityFromContext(ctx) != nil || EmailFromContext(ctx) != "" {
		t.Error("empty context should carry no identity")
	}

	ctx = ContextWithIdentity(ctx, &model.Identity{Email: "alice@example.com"})
	if EmailFromContext(ctx) != "alice@example.com" {
		t.Errorf("EmailFromContext = %q", EmailFromContext(ctx))
	}
}
