// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Ledger-Gate/ledgergate/internal/domain/ratelimit"
)

// bucket holds the token-bucket state for one identity key.
// The per-bucket mutex serializes admission checks for the same key while
// checks for different keys proceed independently.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

// TokenBucketLimiter implements ratelimit.Limiter with one bucket per key.
// Buckets live in a bounded LRU so the key space cannot grow without limit;
// a background sweep additionally evicts buckets idle longer than maxIdle.
// Thread-safe for concurrent access.
type TokenBucketLimiter struct {
	buckets *lru.Cache[string, *bucket]
	mu      sync.Mutex // serializes get-or-create so one key never gets two buckets

	stopChan      chan struct{}
	wg            sync.WaitGroup
	once          sync.Once
	sweepInterval time.Duration
	maxIdle       time.Duration

	// now is replaceable in tests for deterministic refill behavior.
	now func() time.Time
}

// Default resource bounds for the bucket map.
const (
	defaultMaxKeys       = 10_000
	defaultSweepInterval = 5 * time.Minute
	defaultMaxIdle       = 1 * time.Hour
)

// NewTokenBucketLimiter creates an in-memory limiter with default bounds:
// 10k keys, sweep every 5 minutes, evict after 1 hour idle.
func NewTokenBucketLimiter() *TokenBucketLimiter {
	return NewTokenBucketLimiterWithConfig(defaultMaxKeys, defaultSweepInterval, defaultMaxIdle)
}

// NewTokenBucketLimiterWithConfig creates an in-memory limiter with custom bounds.
// maxKeys: LRU capacity of the bucket map (oldest key evicted when full)
// sweepInterval: how often the idle sweep runs
// maxIdle: maximum idle age of a bucket before the sweep removes it
func NewTokenBucketLimiterWithConfig(maxKeys int, sweepInterval, maxIdle time.Duration) *TokenBucketLimiter {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	cache, _ := lru.New[string, *bucket](maxKeys)
	return &TokenBucketLimiter{
		buckets:       cache,
		stopChan:      make(chan struct{}),
		sweepInterval: sweepInterval,
		maxIdle:       maxIdle,
		now:           time.Now,
	}
}

// Allow checks whether a request of the given cost is admitted under the
// config for the identified key.
//
// On each call: elapsed time refills the bucket at RefillRate tokens per
// Interval, capped at Capacity; if enough tokens remain the cost is
// subtracted and the request admitted, otherwise the result carries the
// time until the deficit accrues. The whole check mutates the bucket under
// its own lock, so concurrent calls for one key never double-spend.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string, cost int, config ratelimit.Config) (ratelimit.Result, error) {
	if config.Capacity <= 0 {
		config.Capacity = config.RefillRate
	}
	if config.Capacity <= 0 {
		config.Capacity = 1
	}
	if config.RefillRate <= 0 {
		config.RefillRate = config.Capacity
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if cost <= 0 {
		cost = 1
	}

	now := l.now()
	b := l.getOrCreate(key, config, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	// Refill for elapsed time, saturating at capacity. A clock step
	// backwards refills nothing and never drains tokens.
	capacity := float64(config.Capacity)
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		refill := elapsed.Seconds() / config.Interval.Seconds() * float64(config.RefillRate)
		b.tokens += refill
		if b.tokens > capacity {
			b.tokens = capacity
		}
		b.lastRefill = now
	}
	b.lastSeen = now

	fcost := float64(cost)
	if b.tokens >= fcost {
		b.tokens -= fcost
		return ratelimit.Result{
			Allowed:   true,
			Remaining: int(b.tokens),
		}, nil
	}

	// Time until the deficit accrues at RefillRate per Interval.
	deficit := fcost - b.tokens
	retryAfter := time.Duration(deficit / float64(config.RefillRate) * float64(config.Interval))
	return ratelimit.Result{
		Allowed:    false,
		Remaining:  int(b.tokens),
		RetryAfter: retryAfter,
	}, nil
}

// getOrCreate returns the bucket for key, creating it full on first sight.
func (l *TokenBucketLimiter) getOrCreate(key string, config ratelimit.Config, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets.Get(key); ok {
		return b
	}
	b := &bucket{
		tokens:     float64(config.Capacity),
		lastRefill: now,
		lastSeen:   now,
	}
	l.buckets.Add(key, b)
	return b
}

// StartSweep starts the background goroutine that evicts idle buckets.
// It stops when ctx is cancelled or Stop() is called.
func (l *TokenBucketLimiter) StartSweep(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopChan:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

// sweep removes buckets idle longer than maxIdle.
func (l *TokenBucketLimiter) sweep() {
	cutoff := l.now().Add(-l.maxIdle)
	evicted := 0

	for _, key := range l.buckets.Keys() {
		b, ok := l.buckets.Peek(key)
		if !ok {
			continue
		}
		b.mu.Lock()
		idle := b.lastSeen.Before(cutoff)
		b.mu.Unlock()
		if idle {
			l.buckets.Remove(key)
			evicted++
		}
	}

	if evicted > 0 {
		slog.Debug("rate limiter sweep completed",
			"evicted_keys", evicted,
			"remaining_keys", l.buckets.Len())
	}
}

// Stop gracefully stops the sweep goroutine and waits for it to exit.
// Safe to call multiple times.
func (l *TokenBucketLimiter) Stop() {
	l.once.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
}

// Size returns the current number of tracked keys.
// Useful for testing and the rate_limit_keys gauge.
func (l *TokenBucketLimiter) Size() int {
	return l.buckets.Len()
}

// Compile-time interface verification.
var _ ratelimit.Limiter = (*TokenBucketLimiter)(nil)
