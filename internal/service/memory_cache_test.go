package service

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_GetSetExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCacheWithClock(clock.Now)
	ctx := context.Background()

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("empty cache returned a value")
	}

	_ = c.Set(ctx, "k", "v", time.Minute)
	if v, ok, _ := c.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("Get() = %q, %v; want v, true", v, ok)
	}

	clock.Advance(59 * time.Second)
	if ttl, _ := c.TTL(ctx, "k"); ttl != time.Second {
		t.Errorf("TTL() = %s, want 1s", ttl)
	}

	clock.Advance(time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("entry still present at expiry")
	}
	if ttl, _ := c.TTL(ctx, "k"); ttl != 0 {
		t.Errorf("TTL() of expired key = %s, want 0", ttl)
	}
}

func TestMemoryCache_NoExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCacheWithClock(clock.Now)
	ctx := context.Background()

	_ = c.Set(ctx, "k", "v", 0)
	clock.Advance(24 * time.Hour)

	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("entry without ttl expired")
	}
	if ttl, _ := c.TTL(ctx, "k"); ttl != 0 {
		t.Errorf("TTL() = %s, want 0 for keys without expiry", ttl)
	}
}

func TestMemoryCache_Incr(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCacheWithClock(clock.Now)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(ctx, "counter", time.Minute)
		if err != nil || n != want {
			t.Fatalf("Incr() = %d, %v; want %d", n, err, want)
		}
		clock.Advance(10 * time.Second)
	}

	// Increments keep the expiry set on creation
	if ttl, _ := c.TTL(ctx, "counter"); ttl != 30*time.Second {
		t.Errorf("TTL() = %s, want 30s", ttl)
	}

	clock.Advance(30 * time.Second)
	if n, _ := c.Incr(ctx, "counter", time.Minute); n != 1 {
		t.Errorf("Incr() after expiry = %d, want 1", n)
	}
}

func TestMemoryCache_IncrAddsMissingExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCacheWithClock(clock.Now)
	ctx := context.Background()
	_ = c.Set(ctx, "counter", "5", 0)

	if n, _ := c.Incr(ctx, "counter", time.Minute); n != 6 {
		t.Fatalf("Incr() = %d, want 6", n)
	}
	if ttl, _ := c.TTL(ctx, "counter"); ttl != time.Minute {
		t.Errorf("TTL() = %s, want 1m", ttl)
	}
}

func TestMemoryCache_DeleteAndLen(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCacheWithClock(clock.Now)
	ctx := context.Background()

	_ = c.Set(ctx, "a", "1", time.Minute)
	_ = c.Set(ctx, "b", "2", time.Hour)
	_ = c.Set(ctx, "c", "3", 0)
	if got := c.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	_ = c.Delete(ctx, "c")
	clock.Advance(2 * time.Minute)
	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestMemoryCache_JanitorStops(t *testing.T) {
	c := NewMemoryCache()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.StartJanitor(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
