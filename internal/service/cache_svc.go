package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"github.com/mathieu-neron/packprice/packprice-go/internal/metrics"
)

// ErrTTLUnsupported is returned by caches that cannot report remaining TTL.
var ErrTTLUnsupported = errors.New("cache backend does not support ttl")

// Cache is the TTL key-value store used for rate-limit counters, the IP
// blocklist and cached aggregates.
type Cache interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// TTL returns the remaining lifetime of key, 0 when absent or without
	// expiry, or ErrTTLUnsupported.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, key string) error
}

// Counter is implemented by caches that can increment atomically. The ttl is
// applied only when the increment creates the key.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// CacheService is the Redis-backed Cache.
type CacheService struct {
	rdb *redis.Client
}

// NewCacheService creates a new CacheService. If redisURL is empty or the
// connection fails it returns a CacheService with a nil client; callers check
// Enabled and fall back to MemoryCache.
func NewCacheService(redisURL string) *CacheService {
	if redisURL == "" {
		log.Warn().Msg("redis: no URL configured, caching disabled")
		return &CacheService{}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis: invalid URL, caching disabled")
		return &CacheService{}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis: connection failed, caching disabled")
		return &CacheService{}
	}

	log.Info().Msg("redis: connected, caching enabled")
	return &CacheService{rdb: rdb}
}

// NewCacheServiceFromClient wraps an existing client.
func NewCacheServiceFromClient(rdb *redis.Client) *CacheService {
	return &CacheService{rdb: rdb}
}

// Enabled reports whether a Redis connection is available.
func (c *CacheService) Enabled() bool {
	return c.rdb != nil
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (c *CacheService) Client() *redis.Client {
	return c.rdb
}

func (c *CacheService) Get(ctx context.Context, key string) (string, bool, error) {
	if c.rdb == nil {
		return "", false, nil
	}
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "redis: get %s", key)
	}
	return v, true, nil
}

func (c *CacheService) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.rdb == nil {
		return nil
	}
	return eris.Wrapf(c.rdb.Set(ctx, key, value, ttl).Err(), "redis: set %s", key)
}

func (c *CacheService) TTL(ctx context.Context, key string) (time.Duration, error) {
	if c.rdb == nil {
		return 0, ErrTTLUnsupported
	}
	d, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, eris.Wrapf(err, "redis: ttl %s", key)
	}
	// Redis reports missing keys and keys without expiry as negative values
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (c *CacheService) Delete(ctx context.Context, key string) error {
	if c.rdb == nil {
		return nil
	}
	return eris.Wrapf(c.rdb.Del(ctx, key).Err(), "redis: del %s", key)
}

// incrScript increments a counter and sets its expiry in one step. A counter
// found without an expiry gets one too, so it can never outlive its window.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = tonumber(ARGV[1])
if ttl > 0 and redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return n
`)

// Incr increments key, setting ttl when the key is created.
func (c *CacheService) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.rdb == nil {
		return 0, eris.New("redis: incr with caching disabled")
	}
	n, err := incrScript.Run(ctx, c.rdb, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, eris.Wrapf(err, "redis: incr %s", key)
	}
	return n, nil
}

// Close shuts down the Redis connection.
func (c *CacheService) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// getJSON loads a cached JSON value into dst and records hit/miss metrics.
func getJSON(ctx context.Context, c Cache, key string, dst any) bool {
	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: get failed")
		metrics.CacheMisses.Inc()
		return false
	}
	if !ok {
		metrics.CacheMisses.Inc()
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: corrupt entry")
		metrics.CacheMisses.Inc()
		return false
	}
	metrics.CacheHits.Inc()
	return true
}

// setJSON stores v as JSON. Failures are logged; cached aggregates are
// always recomputable.
func setJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: marshal failed")
		return
	}
	if err := c.Set(ctx, key, string(b), ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: set failed")
	}
}
