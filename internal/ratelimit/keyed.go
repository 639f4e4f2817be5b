package ratelimit

import (
	"sync"
	"time"
)

// DropRecorder counts rejected requests per limiter name.
type DropRecorder interface {
	RecordRateLimitDrop(limiter string)
}

// KeyedConfig configures a KeyedLimiter.
type KeyedConfig struct {
	// Name labels drops in metrics, e.g. "admin_write".
	Name string

	Burst      float64
	RefillRate float64 // tokens per second

	// CleanupPeriod is how often idle buckets are discarded.
	CleanupPeriod time.Duration

	Metrics DropRecorder
}

// KeyedLimiter keeps one bucket per key (an admin email or client IP).
// Buckets that have refilled completely are swept periodically.
type KeyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*Limiter
	config  KeyedConfig
	now     func() time.Time
	stopCh  chan struct{}
	stop    sync.Once
}

// NewKeyedLimiter starts a limiter and its cleanup loop. Call Stop when done.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	kl := newKeyed(cfg, time.Now)
	if cfg.CleanupPeriod > 0 {
		go kl.cleanupLoop()
	}
	return kl
}

func newKeyed(cfg KeyedConfig, now func() time.Time) *KeyedLimiter {
	return &KeyedLimiter{
		entries: make(map[string]*Limiter),
		config:  cfg,
		now:     now,
		stopCh:  make(chan struct{}),
	}
}

// Allow takes a token from key's bucket. The empty key is never limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}
	if kl.bucket(key).Allow() {
		return true
	}
	if kl.config.Metrics != nil {
		kl.config.Metrics.RecordRateLimitDrop(kl.config.Name)
	}
	return false
}

// RetryAfter reports how long key must wait for its next token.
func (kl *KeyedLimiter) RetryAfter(key string) time.Duration {
	kl.mu.Lock()
	l, ok := kl.entries[key]
	kl.mu.Unlock()
	if !ok {
		return 0
	}
	return l.RetryAfter()
}

func (kl *KeyedLimiter) bucket(key string) *Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	l, ok := kl.entries[key]
	if !ok {
		l = newWithClock(kl.config.Burst, kl.config.RefillRate, kl.now)
		kl.entries[key] = l
	}
	return l
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.entries)
}

// sweep drops idle buckets.
func (kl *KeyedLimiter) sweep() {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, l := range kl.entries {
		if l.IsFull() {
			delete(kl.entries, key)
		}
	}
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.sweep()
		}
	}
}

// Stop ends the cleanup loop. Safe to call more than once.
func (kl *KeyedLimiter) Stop() {
	kl.stop.Do(func() { close(kl.stopCh) })
}
