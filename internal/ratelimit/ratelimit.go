// Package ratelimit provides token bucket limiters, alone or keyed per caller.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Limiter is a token bucket. It is safe for concurrent use.
//
// Tokens refill continuously at refillRate per second up to maxTokens;
// each allowed request takes one.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// New creates a full bucket holding maxTokens that refills at refillRate tokens per second.
func New(maxTokens, refillRate float64) *Limiter {
	return newWithClock(maxTokens, refillRate, time.Now)
}

// NewPerMinute creates a limiter allowing requestsPerMinute on average with
// a burst of burst requests.
func NewPerMinute(requestsPerMinute, burst float64) *Limiter {
	return New(burst, requestsPerMinute/60)
}

func newWithClock(maxTokens, refillRate float64, now func() time.Time) *Limiter {
	return &Limiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// refill must be called with mu held.
func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens = math.Min(l.maxTokens, l.tokens+elapsed*l.refillRate)
	}
	l.lastRefill = now
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// RetryAfter is how long until the next token, zero when one is available now.
func (l *Limiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		return 0
	}
	if l.refillRate <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
}

// Available returns the current token count.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens
}

// IsFull reports whether the bucket is at capacity, meaning it has been idle.
func (l *Limiter) IsFull() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens >= l.maxTokens
}
