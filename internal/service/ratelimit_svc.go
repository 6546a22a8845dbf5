package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mathieu-neron/packprice/packprice-go/pkg/hash"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/ipaddr"
)

const (
	// Defaults for anonymous price submissions
	DefaultRateLimitWindow = 5 * time.Minute
	DefaultRateLimitMax    = 10

	// Reset reported when the caller has no usable IP address
	invalidIPReset = 300 * time.Second

	PriceRateLimitPrefix = "rate_limit_price:"
	VoteRateLimitPrefix  = "rate_limit_vote:"
)

// RateLimiter is a fixed-window submission counter keyed by IP address. The
// window starts at the first counted submission and is never extended.
type RateLimiter struct {
	cache  Cache
	prefix string
}

// NewRateLimiter creates a limiter whose counters live under prefix.
func NewRateLimiter(cache Cache, prefix string) *RateLimiter {
	return &RateLimiter{cache: cache, prefix: prefix}
}

// IsRateLimited counts one submission for ip unless the limit is already
// reached. It returns whether the caller is limited and, if so, how long
// until the window resets. Missing or malformed IPs and cache failures are
// always limited.
func (r *RateLimiter) IsRateLimited(ctx context.Context, ip string, window time.Duration, maxSubmissions int) (bool, time.Duration) {
	ip, ok := ipaddr.Normalize(ip)
	if !ok {
		return true, invalidIPReset
	}

	key := r.prefix + ip
	raw, found, err := r.cache.Get(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("ip_hash", hash.LogIP(ip)).Msg("rate-limit: counter read failed")
		return true, window
	}

	var count int64
	if found {
		count, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			count = 0
		}
	}

	if count >= int64(maxSubmissions) {
		return true, r.limitedFor(ctx, ip, key, raw, window)
	}

	if err := r.increment(ctx, key, count, window); err != nil {
		log.Error().Err(err).Str("ip_hash", hash.LogIP(ip)).Msg("rate-limit: counter increment failed")
		return true, window
	}
	return false, 0
}

// limitedFor returns the reset time of a full counter. A counter without an
// expiry would limit ip forever, so its window is restarted.
func (r *RateLimiter) limitedFor(ctx context.Context, ip, key, raw string, window time.Duration) time.Duration {
	ttl, err := r.cache.TTL(ctx, key)
	if err != nil {
		return window
	}
	if ttl > 0 {
		return ttl
	}
	if err := r.cache.Set(ctx, key, raw, window); err != nil {
		log.Error().Err(err).Str("ip_hash", hash.LogIP(ip)).Msg("rate-limit: counter expiry repair failed")
	} else {
		log.Warn().Str("ip_hash", hash.LogIP(ip)).Msg("rate-limit: counter had no expiry, window restarted")
	}
	return window
}

// untilReset reports the counter's remaining lifetime, falling back to the
// full window when the backend cannot tell.
func (r *RateLimiter) untilReset(ctx context.Context, key string, window time.Duration) time.Duration {
	ttl, err := r.cache.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return window
	}
	return ttl
}

func (r *RateLimiter) increment(ctx context.Context, key string, current int64, window time.Duration) error {
	if counter, ok := r.cache.(Counter); ok {
		_, err := counter.Incr(ctx, key, window)
		return err
	}

	// get/set fallback: keep the window anchored at the first submission
	ttl := window
	if current > 0 {
		ttl = r.untilReset(ctx, key, window)
	}
	return r.cache.Set(ctx, key, strconv.FormatInt(current+1, 10), ttl)
}
