// Package cache is the Redis layer behind the identity cache, the per-IP
// token bucket and the reconcile lock. Callers treat every Redis failure as
// a miss or an allow, so Redis is never on the critical path of a request.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client timeouts. Kept short so a slow Redis degrades to a cache miss.
const (
	dialTimeout  = 2 * time.Second
	ioTimeout    = 500 * time.Millisecond
	pingTimeout  = 3 * time.Second
	poolTimeout  = time.Second
	maxIdleTime  = 5 * time.Minute
	poolSize     = 10
	minIdleConns = 2
)

// Cache wraps a Redis client.
type Cache struct {
	client *redis.Client
}

// New parses redisURL, opens a pool and checks it with a ping.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.DialTimeout = dialTimeout
	opt.ReadTimeout = ioTimeout
	opt.WriteTimeout = ioTimeout
	opt.PoolSize = poolSize
	opt.MinIdleConns = minIdleConns
	opt.PoolTimeout = poolTimeout
	opt.ConnMaxIdleTime = maxIdleTime

	c := &Cache{client: redis.NewClient(opt)}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = c.client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return c, nil
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying client for tests.
func (c *Cache) Client() *redis.Client {
	return c.client
}
