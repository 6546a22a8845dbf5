package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeHistory serves fixed per-IP aggregates.
type fakeHistory struct {
	history map[string]model.IPHistory
	recent  map[string]model.RecentActivity
	err     error

	calls int
	since time.Time
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		history: make(map[string]model.IPHistory),
		recent:  make(map[string]model.RecentActivity),
	}
}

func (f *fakeHistory) IPHistory(_ context.Context, ip string) (model.IPHistory, error) {
	f.calls++
	if f.err != nil {
		return model.IPHistory{}, f.err
	}
	return f.history[ip], nil
}

func (f *fakeHistory) RecentActivity(_ context.Context, ip string, since time.Time) (model.RecentActivity, error) {
	f.calls++
	f.since = since
	if f.err != nil {
		return model.RecentActivity{}, f.err
	}
	return f.recent[ip], nil
}

// ttlLessCache is a Cache without TTL support or atomic increments.
type ttlLessCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newTTLLessCache() *ttlLessCache {
	return &ttlLessCache{data: make(map[string]string)}
}

func (c *ttlLessCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *ttlLessCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *ttlLessCache) TTL(context.Context, string) (time.Duration, error) {
	return 0, ErrTTLUnsupported
}

func (c *ttlLessCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// failingCache fails every operation.
type failingCache struct{ err error }

func (c failingCache) Get(context.Context, string) (string, bool, error) { return "", false, c.err }
func (c failingCache) Set(context.Context, string, string, time.Duration) error {
	return c.err
}
func (c failingCache) TTL(context.Context, string) (time.Duration, error) { return 0, c.err }
func (c failingCache) Delete(context.Context, string) error               { return c.err }

func ptr[T any](v T) *T {
	return &v
}
