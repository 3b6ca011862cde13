package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitIPPrefix is the Redis key prefix for IP rate limits.
	rateLimitIPPrefix = "ratelimit:ip:"
	// rateLimitIPTTL is the TTL for IP rate limit keys.
	rateLimitIPTTL = 60 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript is a Lua script implementing the token bucket algorithm.
// It's atomic and handles token refill and consumption in a single operation.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- max tokens (bucket capacity)
	local now = tonumber(ARGV[3])       -- current time in seconds
	local ttl = tonumber(ARGV[4])       -- TTL in seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = now - last_update
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckIPRateLimit checks and updates the rate limit for an IP address.
// IP is hashed to avoid storing raw IP addresses.
func (c *Cache) CheckIPRateLimit(ctx context.Context, scope, ip string, ratePerSecond float64, burst int) (*RateLimitResult, error) {
	key := rateLimitIPPrefix + scope + ":" + hashIP(ip)
	return c.checkRateLimit(ctx, key, ratePerSecond, burst, int(rateLimitIPTTL.Seconds()))
}

func (c *Cache) checkRateLimit(ctx context.Context, key string, rate float64, burst, ttl int) (*RateLimitResult, error) {
	if rate <= 0 {
		return allowAll(burst), nil
	}

	now := time.Now().Unix()

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		rate, burst, now, ttl,
	).Int64Slice()
	if err != nil || len(result) != 3 {
		// Fail open on Redis errors - allow the request
		return allowAll(burst), nil
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Remaining:  result[2],
		ResetAt:    time.Now().Add(time.Duration(float64(time.Second) / rate)),
		RetryAfter: time.Duration(result[1]) * time.Second,
	}, nil
}

func allowAll(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   time.Now().Add(time.Minute),
	}
}

// hashIP creates a truncated SHA256 hash of an IP address.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
