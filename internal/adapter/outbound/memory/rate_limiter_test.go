package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Ledger-Gate/ledgergate/internal/domain/ratelimit"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
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

func newTestLimiter(clock *fakeClock) *TokenBucketLimiter {
	l := NewTokenBucketLimiter()
	l.now = clock.Now
	return l
}

func TestTokenBucketLimiter_BurstThenDeny(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := newTestLimiter(clock)
	config := ratelimit.Config{Capacity: 30, RefillRate: 30, Interval: time.Minute}
	ctx := context.Background()

	// A full bucket admits exactly Capacity requests at the same instant.
	for i := 0; i < 30; i++ {
		result, err := l.Allow(ctx, "user:alice", 1, config)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d: Allowed = false, want true", i+1)
		}
	}

	result, err := l.Allow(ctx, "user:alice", 1, config)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if result.Allowed {
		t.Error("request 31: Allowed = true, want false")
	}
	if result.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", result.RetryAfter)
	}
	// One token accrues every 2 seconds at 30 per minute.
	if result.RetryAfter > 2*time.Second {
		t.Errorf("RetryAfter = %v, want <= 2s", result.RetryAfter)
	}
}

func TestTokenBucketLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := newTestLimiter(clock)
	config := ratelimit.Config{Capacity: 1, RefillRate: 1, Interval: time.Minute}
	ctx := context.Background()

	if result, _ := l.Allow(ctx, "user:alice", 1, config); !result.Allowed {
		t.Fatal("first request for alice denied")
	}
	if result, _ := l.Allow(ctx, "user:alice", 1, config); result.Allowed {
		t.Error("second request for alice allowed, want denied")
	}
	if result, _ := l.Allow(ctx, "user:bob", 1, config); !result.Allowed {
		t.Error("first request for bob denied, want allowed")
	}
}

func TestTokenBucketLimiter_Refill(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := newTestLimiter(clock)
	config := ratelimit.Config{Capacity: 30, RefillRate: 30, Interval: time.Minute}
	ctx := context.Background()

	// Drain the bucket.
	for i := 0; i < 30; i++ {
		l.Allow(ctx, "user:alice", 1, config)
	}
	if result, _ := l.Allow(ctx, "user:alice", 1, config); result.Allowed {
		t.Fatal("drained bucket admitted a request")
	}

	// Half an interval restores half the tokens.
	clock.Advance(30 * time.Second)
	admitted := 0
	for i := 0; i < 30; i++ {
		if result, _ := l.Allow(ctx, "user:alice", 1, config); result.Allowed {
			admitted++
		}
	}
	if admitted != 15 {
		t.Errorf("admitted after half interval = %d, want 15", admitted)
	}
}

func TestTokenBucketLimiter_RefillSaturatesAtCapacity(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := newTestLimiter(clock)
	config := ratelimit.Config{Capacity: 30, RefillRate: 30, Interval: time.Minute}
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		l.Allow(ctx, "user:alice", 1, config)
	}

	// Long idle periods never refill past capacity.
	clock.Advance(24 * time.Hour)
	admitted := 0
	for i := 0; i < 60; i++ {
		if result, _ := l.Allow(ctx, "user:alice", 1, config); result.Allowed {
			admitted++
		}
	}
	if admitted != 30 {
		t.Errorf("admitted after long idle = %d, want 30", admitted)
	}
}

func TestTokenBucketLimiter_ClockStepBackwards(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := newTestLimiter(clock)
	config := ratelimit.Config{Capacity: 5, RefillRate: 5, Interval: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Allow(ctx, "user:alice", 1, config)
	}

	clock.Advance(-10 * time.Second)
	result, err := l.Allow(ctx, "user:alice", 1, config)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !result.Allowed {
		t.Error("Allowed = false, want true")
	}
	if result.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1 (no refill on backwards step)", result.Remaining)
	}
}

func TestTokenBucketLimiter_CostAboveOne(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := newTestLimiter(clock)
	config := ratelimit.Config{Capacity: 10, RefillRate: 10, Interval: time.Minute}
	ctx := context.Background()

	result, _ := l.Allow(ctx, "user:alice", 7, config)
	if !result.Allowed {
		t.Fatal("cost 7 on full bucket of 10 denied")
	}
	if result.Remaining != 3 {
		t.Errorf("Remaining = %d, want 3", result.Remaining)
	}

	result, _ = l.Allow(ctx, "user:alice", 7, config)
	if result.Allowed {
		t.Error("cost 7 with 3 tokens allowed, want denied")
	}
}

func TestTokenBucketLimiter_ConfigDefaults(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := newTestLimiter(clock)
	ctx := context.Background()

	// Zero-value config falls back to a single-token bucket per minute.
	result, err := l.Allow(ctx, "user:alice", 0, ratelimit.Config{})
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !result.Allowed {
		t.Error("first request under zero config denied")
	}
	if result, _ := l.Allow(ctx, "user:alice", 0, ratelimit.Config{}); result.Allowed {
		t.Error("second request under zero config allowed, want denied")
	}
}

func TestTokenBucketLimiter_ConcurrentNoDoubleSpend(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := newTestLimiter(clock)
	config := ratelimit.Config{Capacity: 1, RefillRate: 1, Interval: time.Hour}
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := l.Allow(ctx, "user:alice", 1, config)
			if err != nil {
				t.Errorf("Allow() error = %v", err)
				return
			}
			if result.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("admitted = %d, want exactly 1", admitted)
	}
}

func TestTokenBucketLimiter_LRUBound(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewTokenBucketLimiterWithConfig(100, time.Minute, time.Hour)
	l.now = clock.Now
	config := ratelimit.DefaultConfig()
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		key := ratelimit.FormatKey(ratelimit.KeyTypeFingerprint, string(rune('a'+i%26))+string(rune('0'+i/26)))
		l.Allow(ctx, key, 1, config)
	}
	if size := l.Size(); size > 100 {
		t.Errorf("Size() = %d, want <= 100", size)
	}
}

func TestTokenBucketLimiter_SweepEvictsIdleBuckets(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewTokenBucketLimiterWithConfig(100, time.Minute, time.Hour)
	l.now = clock.Now
	config := ratelimit.DefaultConfig()
	ctx := context.Background()

	l.Allow(ctx, "user:idle", 1, config)
	clock.Advance(2 * time.Hour)
	l.Allow(ctx, "user:active", 1, config)

	l.sweep()

	if size := l.Size(); size != 1 {
		t.Errorf("Size() after sweep = %d, want 1", size)
	}
	if _, ok := l.buckets.Peek("user:active"); !ok {
		t.Error("active bucket evicted by sweep")
	}
}

func TestTokenBucketLimiter_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	l := NewTokenBucketLimiter()
	l.StartSweep(context.Background())
	l.Stop()
	l.Stop()
}
