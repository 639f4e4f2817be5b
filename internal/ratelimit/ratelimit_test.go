package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is advanced by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestNew(t *testing.T) {
	t.Parallel()
	l := New(10, 5)
	if l.maxTokens != 10 {
		t.Errorf("maxTokens = %v, want 10", l.maxTokens)
	}
	if l.refillRate != 5 {
		t.Errorf("refillRate = %v, want 5", l.refillRate)
	}
	if l.tokens != 10 {
		t.Errorf("initial tokens = %v, want 10", l.tokens)
	}
}

func TestNewPerMinute(t *testing.T) {
	t.Parallel()
	l := NewPerMinute(60, 5)
	if l.refillRate != 1 {
		t.Errorf("refillRate = %v, want 1", l.refillRate)
	}
	if l.maxTokens != 5 {
		t.Errorf("maxTokens = %v, want 5", l.maxTokens)
	}
}

func TestAllow(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newWithClock(2, 1, clock.Now)

	if !l.Allow() || !l.Allow() {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow() {
		t.Error("third request allowed with an empty bucket")
	}

	clock.Advance(time.Second)
	if !l.Allow() {
		t.Error("request denied after one token refilled")
	}
}

func TestRefillCapsAtMax(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newWithClock(3, 10, clock.Now)
	l.Allow()

	clock.Advance(time.Hour)
	if got := l.Available(); got != 3 {
		t.Errorf("Available() = %v, want 3", got)
	}
	if !l.IsFull() {
		t.Error("IsFull() = false after long idle")
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newWithClock(1, 0.5, clock.Now)

	if got := l.RetryAfter(); got != 0 {
		t.Errorf("RetryAfter() = %v with a token available, want 0", got)
	}
	l.Allow()
	if got := l.RetryAfter(); got != 2*time.Second {
		t.Errorf("RetryAfter() = %v, want 2s", got)
	}
	clock.Advance(1500 * time.Millisecond)
	if got := l.RetryAfter(); got != 500*time.Millisecond {
		t.Errorf("RetryAfter() = %v, want 500ms", got)
	}
}

func TestAllow_Concurrent(t *testing.T) {
	t.Parallel()
	l := New(100, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 200 {
		wg.Go(func() {
			if l.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed = %d, want 100", allowed)
	}
}
