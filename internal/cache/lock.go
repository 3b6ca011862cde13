package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// lockPrefix is the Redis key prefix for advisory locks.
const lockPrefix = "lock:"

// unlockScript deletes the lock only if it still holds our token.
var unlockScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// TryLock takes the named lock for ttl if nobody else holds it.
// The returned release function is nil when the lock was not acquired.
func (c *Cache) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := lockPrefix + name
	token := uuid.NewString()

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := unlockScript.Run(ctx, c.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", name, err)
		}
		return nil
	}
	return release, true, nil
}
