package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartpick/smartpick/internal/model"
)

// identityCachePrefix is the Redis key prefix for verified identities.
const identityCachePrefix = "identity:"

func identityKey(tokenHash string) string {
	return identityCachePrefix + tokenHash
}

// GetIdentity retrieves a cached identity by token hash.
// Returns nil if not found (cache miss).
func (c *Cache) GetIdentity(ctx context.Context, tokenHash string) (*model.Identity, error) {
	data, err := c.client.Get(ctx, identityKey(tokenHash)).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var id model.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}
	return &id, nil
}

// SetIdentity caches a verified identity for ttl.
func (c *Cache) SetIdentity(ctx context.Context, tokenHash string, id *model.Identity, ttl time.Duration) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return c.client.Set(ctx, identityKey(tokenHash), data, ttl).Err()
}

// DeleteIdentity removes a cached identity.
func (c *Cache) DeleteIdentity(ctx context.Context, tokenHash string) error {
	return c.client.Del(ctx, identityKey(tokenHash)).Err()
}
