package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jonwraymond/policykit/policy"
)

// Decision is the outcome of an admission check.
type Decision struct {
	// Admit is true when the request may proceed.
	Admit bool

	// RetryAfter is how long until one token refills, set only on denial.
	RetryAfter time.Duration

	// Bypassed is true when a bypass role admitted the request without
	// touching bucket state.
	Bypassed bool
}

// Store holds per-key bucket state. The refill-and-consume sequence must be
// atomic per key, and distinct keys must not block each other.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: remote implementations should honor cancellation/deadlines;
//   the in-memory store ignores ctx.
// - Errors: the in-memory store never errors; distributed stores may.
type Store interface {
	// Take refills the bucket for key according to bucket parameters and
	// consumes one token if at least one is available.
	Take(ctx context.Context, key string, bucket *policy.LeakyBucket) (Decision, error)

	// Tokens reports the token count after refill, without consuming.
	Tokens(ctx context.Context, key string, bucket *policy.LeakyBucket) (float64, error)

	// Forget drops state for key. Idempotent.
	Forget(ctx context.Context, key string) error
}

const shardCount = 64

// bucketState is the runtime state of one key's bucket. Mutated only while
// holding the owning shard's lock.
type bucketState struct {
	tokens     float64
	lastRefill time.Time
	lastAccess time.Time
	window     time.Duration
}

// refill adds tokens for the time elapsed since the last refill, capped at
// burst capacity.
func (b *bucketState) refill(bucket *policy.LeakyBucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	b.lastRefill = now

	b.tokens += elapsed.Seconds() * bucket.DrainRate()
	if capacity := float64(bucket.BurstCapacity); b.tokens > capacity {
		b.tokens = capacity
	}
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
}

// MemoryStoreConfig configures the in-memory store.
type MemoryStoreConfig struct {
	// IdleFactor evicts a bucket once it has gone unaccessed for
	// IdleFactor times its rule's time window.
	// Default: 10
	IdleFactor uint

	// SweepInterval is how often the eviction sweep runs. Zero disables
	// background sweeping (Sweep may still be called directly).
	SweepInterval time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// MemoryStore is the default in-process Store. Keys are sharded across
// fixed lock stripes so unrelated callers do not serialize, and idle
// buckets are evicted to bound memory. Eviction takes the same shard lock
// as Take, so it can never race a concurrent admit for the same key.
type MemoryStore struct {
	config MemoryStoreConfig
	shards [shardCount]shard
	now    func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryStore creates an in-memory store and starts its eviction sweep.
// Call Close to stop the sweep.
func NewMemoryStore(config MemoryStoreConfig) *MemoryStore {
	// Apply defaults
	if config.IdleFactor == 0 {
		config.IdleFactor = 10
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	s := &MemoryStore{
		config: config,
		now:    config.Now,
		stop:   make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i].buckets = make(map[string]*bucketState)
	}

	if config.SweepInterval > 0 {
		go s.sweepLoop(config.SweepInterval)
	}
	return s
}

// Close stops the background eviction sweep.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Take refills then consumes one token if available. New keys start with a
// full bucket.
func (s *MemoryStore) Take(_ context.Context, key string, bucket *policy.LeakyBucket) (Decision, error) {
	now := s.now()
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	state := sh.buckets[key]
	if state == nil {
		state = &bucketState{
			tokens:     float64(bucket.BurstCapacity),
			lastRefill: now,
		}
		sh.buckets[key] = state
	} else {
		state.refill(bucket, now)
	}
	state.lastAccess = now
	state.window = time.Duration(bucket.WindowSeconds()) * time.Second

	if state.tokens >= 1 {
		state.tokens--
		return Decision{Admit: true}, nil
	}

	wait := time.Duration((1 - state.tokens) / bucket.DrainRate() * float64(time.Second))
	return Decision{Admit: false, RetryAfter: wait}, nil
}

// Tokens reports the refilled token count without consuming one.
func (s *MemoryStore) Tokens(_ context.Context, key string, bucket *policy.LeakyBucket) (float64, error) {
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	state := sh.buckets[key]
	if state == nil {
		return float64(bucket.BurstCapacity), nil
	}
	state.refill(bucket, s.now())
	return state.tokens, nil
}

// Forget drops state for key.
func (s *MemoryStore) Forget(_ context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	delete(sh.buckets, key)
	sh.mu.Unlock()
	return nil
}

// Sweep evicts buckets idle longer than IdleFactor times their window.
func (s *MemoryStore) Sweep() {
	now := s.now()
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, state := range sh.buckets {
			if now.Sub(state.lastAccess) > time.Duration(s.config.IdleFactor)*state.window {
				delete(sh.buckets, key)
			}
		}
		sh.mu.Unlock()
	}
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *MemoryStore) shard(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
