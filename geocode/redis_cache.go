package geocode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements the Cache interface using Redis.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(client redis.UniversalClient, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "geocode:"
	}
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a cached value.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := c.keyPrefix + key
	val, err := c.client.Get(ctx, fullKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return val, nil
}

// Set stores a value in cache with TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	fullKey := c.keyPrefix + key
	if err := c.client.Set(ctx, fullKey, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// RedisRateLimiter implements the RateLimiter interface with a fixed
// window counter in Redis. Public geocoders ask for at most one request
// per second per client, which a one-second window enforces closely
// enough.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
	limit     int
	window    time.Duration
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	KeyPrefix string
	Limit     int           // requests per window
	Window    time.Duration // window size
}

// DefaultRateLimiterConfig returns the Nominatim-friendly default of one
// request per second.
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		KeyPrefix: "geocode:ratelimit:",
		Limit:     1,
		Window:    time.Second,
	}
}

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client redis.UniversalClient, config *RateLimiterConfig) *RedisRateLimiter {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: config.KeyPrefix,
		limit:     config.Limit,
		window:    config.Window,
	}
}

func (r *RedisRateLimiter) take(ctx context.Context, key string) (bool, error) {
	fullKey := r.keyPrefix + key

	pipe := r.client.Pipeline()
	countCmd := pipe.Incr(ctx, fullKey)
	pipe.PExpireNX(ctx, fullKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limiter error: %w", err)
	}
	return countCmd.Val() <= int64(r.limit), nil
}

// Allow checks if a request is allowed without waiting.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	ok, err := r.take(ctx, key)
	return err == nil && ok
}

// Wait blocks until the request is allowed or the context is cancelled.
func (r *RedisRateLimiter) Wait(ctx context.Context, key string) error {
	for {
		ok, err := r.take(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.window / time.Duration(r.limit+1)):
		}
	}
}

// InMemoryCache implements the Cache interface using in-memory storage.
// Use for testing or single-instance deployments.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves a cached value.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, nil
	}
	return entry.value, nil
}

// Set stores a value in cache with TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// NoopRateLimiter is a rate limiter that allows everything.
// Use for testing or when rate limiting is disabled.
type NoopRateLimiter struct{}

// NewNoopRateLimiter creates a new noop rate limiter.
func NewNoopRateLimiter() *NoopRateLimiter {
	return &NoopRateLimiter{}
}

// Allow always returns true.
func (r *NoopRateLimiter) Allow(ctx context.Context, key string) bool {
	return true
}

// Wait always returns immediately.
func (r *NoopRateLimiter) Wait(ctx context.Context, key string) error {
	return nil
}
