package ratelimit

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/policykit/policy"
)

// fakeClock is a manually advanced clock for deterministic refill tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testBucket() *policy.LeakyBucket {
	return &policy.LeakyBucket{BurstCapacity: 5, AllowedRequests: 25, TimeWindowSeconds: 60}
}

func TestMemoryStore_BurstThenDeny(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Now: clock.Now})
	defer store.Close()

	ctx := context.Background()
	bucket := testBucket()

	for i := 0; i < 5; i++ {
		d, err := store.Take(ctx, "k", bucket)
		if err != nil {
			t.Fatalf("Take() error = %v", err)
		}
		if !d.Admit {
			t.Fatalf("Take() %d denied, want full burst admitted", i+1)
		}
	}

	d, err := store.Take(ctx, "k", bucket)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if d.Admit {
		t.Fatal("Take() after burst exhausted should deny")
	}
	// Drain rate is 25/60 per second, so one token takes 2.4s.
	want := 2400 * time.Millisecond
	if diff := d.RetryAfter - want; diff < -time.Millisecond || diff > time.Millisecond {
		t.Errorf("RetryAfter = %v, want ~%v", d.RetryAfter, want)
	}
}

func TestMemoryStore_RefillAdmitsAgain(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Now: clock.Now})
	defer store.Close()

	ctx := context.Background()
	bucket := testBucket()

	for i := 0; i < 5; i++ {
		if d, _ := store.Take(ctx, "k", bucket); !d.Admit {
			t.Fatal("burst take denied")
		}
	}
	if d, _ := store.Take(ctx, "k", bucket); d.Admit {
		t.Fatal("expected denial with empty bucket")
	}

	// One token refills after 2.4s at 25 requests per 60s; advance a
	// touch past it so float rounding cannot leave the bucket short.
	clock.Advance(2500 * time.Millisecond)
	d, err := store.Take(ctx, "k", bucket)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if !d.Admit {
		t.Error("Take() after one-token refill should admit")
	}
	if d, _ := store.Take(ctx, "k", bucket); d.Admit {
		t.Error("only one token should have refilled")
	}
}

func TestMemoryStore_RefillCappedAtBurst(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Now: clock.Now})
	defer store.Close()

	ctx := context.Background()
	bucket := testBucket()

	if d, _ := store.Take(ctx, "k", bucket); !d.Admit {
		t.Fatal("first take denied")
	}

	// A long idle period must not accumulate beyond capacity.
	clock.Advance(time.Hour)
	tokens, err := store.Tokens(ctx, "k", bucket)
	if err != nil {
		t.Fatalf("Tokens() error = %v", err)
	}
	if tokens != float64(bucket.BurstCapacity) {
		t.Errorf("Tokens() = %v, want capped at %d", tokens, bucket.BurstCapacity)
	}
}

func TestMemoryStore_TokensDoesNotConsume(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Now: clock.Now})
	defer store.Close()

	ctx := context.Background()
	bucket := testBucket()

	if _, err := store.Take(ctx, "k", bucket); err != nil {
		t.Fatalf("Take() error = %v", err)
	}

	before, _ := store.Tokens(ctx, "k", bucket)
	after, _ := store.Tokens(ctx, "k", bucket)
	if before != after {
		t.Errorf("Tokens() consumed state: %v then %v", before, after)
	}
	if math.Abs(before-4) > 1e-9 {
		t.Errorf("Tokens() = %v, want 4 after one take", before)
	}
}

func TestMemoryStore_DistinctKeysIndependent(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Now: clock.Now})
	defer store.Close()

	ctx := context.Background()
	bucket := testBucket()

	for i := 0; i < 5; i++ {
		store.Take(ctx, "a", bucket)
	}
	if d, _ := store.Take(ctx, "a", bucket); d.Admit {
		t.Fatal("key a should be exhausted")
	}
	if d, _ := store.Take(ctx, "b", bucket); !d.Admit {
		t.Error("key b should be untouched by key a's takes")
	}
}

func TestMemoryStore_Forget(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Now: clock.Now})
	defer store.Close()

	ctx := context.Background()
	bucket := testBucket()

	for i := 0; i < 5; i++ {
		store.Take(ctx, "k", bucket)
	}
	if err := store.Forget(ctx, "k"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if d, _ := store.Take(ctx, "k", bucket); !d.Admit {
		t.Error("Take() after Forget() should start with a full bucket")
	}
	if err := store.Forget(ctx, "never-seen"); err != nil {
		t.Errorf("Forget() of unknown key error = %v", err)
	}
}

func TestMemoryStore_SweepEvictsIdleBuckets(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Now: clock.Now, IdleFactor: 2})
	defer store.Close()

	ctx := context.Background()
	bucket := testBucket()

	for i := 0; i < 5; i++ {
		store.Take(ctx, "idle", bucket)
	}

	// Idle longer than IdleFactor * window (2 * 60s).
	clock.Advance(3 * time.Minute)
	store.Sweep()

	// Eviction resets state, so the bucket starts full again.
	if d, _ := store.Take(ctx, "idle", bucket); !d.Admit {
		t.Error("evicted bucket should have been recreated full")
	}
}

func TestMemoryStore_SweepKeepsActiveBuckets(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Now: clock.Now, IdleFactor: 10})
	defer store.Close()

	ctx := context.Background()
	bucket := testBucket()

	for i := 0; i < 5; i++ {
		store.Take(ctx, "active", bucket)
	}

	clock.Advance(time.Minute)
	store.Sweep()

	// One minute of refill at 25/60 per second is 25 tokens, capped at 5;
	// but the bucket survived the sweep, so taking all five then one more
	// must deny rather than hand out a fresh burst mid-window.
	for i := 0; i < 5; i++ {
		if d, _ := store.Take(ctx, "active", bucket); !d.Admit {
			t.Fatalf("refilled take %d denied", i+1)
		}
	}
	if d, _ := store.Take(ctx, "active", bucket); d.Admit {
		t.Error("surviving bucket should deny once drained")
	}
}

func TestMemoryStore_ConcurrentTakesNeverOverAdmit(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Now: clock.Now})
	defer store.Close()

	ctx := context.Background()
	bucket := testBucket()

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := store.Take(ctx, "k", bucket)
			if err != nil {
				t.Errorf("Take() error = %v", err)
				return
			}
			if d.Admit {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != int(bucket.BurstCapacity) {
		t.Errorf("admitted %d concurrent takes, want exactly %d", admitted, bucket.BurstCapacity)
	}
}

func TestMemoryStore_DeprecatedAliasFields(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Now: clock.Now})
	defer store.Close()

	ctx := context.Background()
	bucket := &policy.LeakyBucket{BurstCapacity: 2, RateRequests: 10, RateSeconds: 5}

	for i := 0; i < 2; i++ {
		if d, _ := store.Take(ctx, "k", bucket); !d.Admit {
			t.Fatalf("take %d denied", i+1)
		}
	}
	d, _ := store.Take(ctx, "k", bucket)
	if d.Admit {
		t.Fatal("expected denial")
	}
	// 10 per 5s drains 2 tokens per second, so one token takes 500ms.
	want := 500 * time.Millisecond
	if diff := d.RetryAfter - want; diff < -time.Millisecond || diff > time.Millisecond {
		t.Errorf("RetryAfter = %v, want ~%v", d.RetryAfter, want)
	}
}
