package middleware

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/time/rate"
)

// ThrottleConfig defines the request budget for a route or group. Max
// requests may burst at once; the budget refills evenly over Window.
type ThrottleConfig struct {
	Max    int                      // Burst size and requests per window
	Window time.Duration            // Time to refill a full burst
	KeyFn  func(c fiber.Ctx) string // Returns the key to throttle on
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is an in-memory per-key token bucket limiter for HTTP requests.
// It protects the API as a whole; anonymous submission limits are enforced
// separately by the services.
type Throttle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	config  ThrottleConfig
	limit   rate.Limit
	stopCh  chan struct{}
	once    sync.Once
}

// NewThrottle creates a throttle with the given config and starts its
// background cleanup.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.Max <= 0 {
		cfg.Max = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFn == nil {
		cfg.KeyFn = KeyByIP
	}
	t := &Throttle{
		entries: make(map[string]*throttleEntry),
		config:  cfg,
		limit:   rate.Every(cfg.Window / time.Duration(cfg.Max)),
		stopCh:  make(chan struct{}),
	}
	go t.cleanup(5 * time.Minute)
	return t
}

// Handler returns a Fiber middleware handler that enforces the budget.
func (t *Throttle) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		now := time.Now()
		lim := t.limiterFor(t.config.KeyFn(c), now)

		r := lim.ReserveN(now, 1)
		delay := r.DelayFrom(now)
		if delay > 0 {
			r.CancelAt(now)
			retryAfter := int(math.Ceil(delay.Seconds()))
			setThrottleHeaders(c, t.config.Max, 0, now.Add(delay))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{
					"code":       "RATE_LIMITED",
					"message":    fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
					"retryAfter": retryAfter,
				},
			})
		}

		remaining := int(lim.TokensAt(now))
		setThrottleHeaders(c, t.config.Max, remaining, now.Add(t.refillTime(remaining)))
		return c.Next()
	}
}

// Allow reports whether a request for key is allowed now.
func (t *Throttle) Allow(key string) bool {
	return t.allowAt(key, time.Now())
}

func (t *Throttle) allowAt(key string, now time.Time) bool {
	return t.limiterFor(key, now).AllowN(now, 1)
}

// Stop ends the background cleanup.
func (t *Throttle) Stop() {
	t.once.Do(func() { close(t.stopCh) })
}

func (t *Throttle) limiterFor(key string, now time.Time) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.config.Max)}
		t.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// refillTime is how long until the bucket is full again.
func (t *Throttle) refillTime(remaining int) time.Duration {
	missing := t.config.Max - remaining
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing) * (t.config.Window / time.Duration(t.config.Max))
}

func setThrottleHeaders(c fiber.Ctx, limit, remaining int, resetAt time.Time) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// cleanup drops keys idle for longer than a full window; their buckets
// would be full again anyway.
func (t *Throttle) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.purge(time.Now())
		case <-t.stopCh:
			return
		}
	}
}

func (t *Throttle) purge(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, e := range t.entries {
		if now.Sub(e.lastSeen) > t.config.Window {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

// KeyByIP returns the client IP as the throttle key.
func KeyByIP(c fiber.Ctx) string {
	return "ip:" + ClientIP(c)
}

// --- Pre-configured throttles for the API ---

// NewReadThrottle: 100 req/min per IP
func NewReadThrottle() *Throttle {
	return NewThrottle(ThrottleConfig{
		Max:    100,
		Window: time.Minute,
		KeyFn:  KeyByIP,
	})
}

// NewWriteThrottle: 20 req/min per IP
func NewWriteThrottle() *Throttle {
	return NewThrottle(ThrottleConfig{
		Max:    20,
		Window: time.Minute,
		KeyFn:  KeyByIP,
	})
}

// NewSecurityThrottle: 10 req/min per IP
func NewSecurityThrottle() *Throttle {
	return NewThrottle(ThrottleConfig{
		Max:    10,
		Window: time.Minute,
		KeyFn:  KeyByIP,
	})
}
