package scheduler

import (
	"sync"
	"time"
)

// Breaker tracks consecutive fetch failures per source and temporarily
// excludes sources that keep failing. It also guards against a new cycle
// fetching a source whose previous attempt is still outstanding. Owned by
// the scheduler and passed by reference; no package-level state.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  map[string]int
	openUntil map[string]time.Time
	inflight  map[string]bool
	now       func() time.Time
}

// BreakerState is a read-only view of one source's breaker status.
type BreakerState struct {
	Failures  int       `json:"failures"`
	Open      bool      `json:"open"`
	OpenUntil time.Time `json:"open_until,omitempty"`
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures and closes again after the cooldown window.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		failures:  make(map[string]int),
		openUntil: make(map[string]time.Time),
		inflight:  make(map[string]bool),
		now:       time.Now,
	}
}

// Allow reports whether the source may be fetched. An open breaker allows
// again once its cooldown elapses; the failure counter then resets on the
// next success.
func (b *Breaker) Allow(sourceID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, open := b.openUntil[sourceID]
	if !open {
		return true
	}
	if b.now().Before(until) {
		return false
	}
	delete(b.openUntil, sourceID)
	return true
}

// RecordSuccess resets the source's failure count.
func (b *Breaker) RecordSuccess(sourceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, sourceID)
	delete(b.openUntil, sourceID)
}

// RecordFailure increments the failure count and opens the breaker at the
// threshold. Returns the current consecutive failure count.
func (b *Breaker) RecordFailure(sourceID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[sourceID]++
	if b.failures[sourceID] >= b.threshold {
		b.openUntil[sourceID] = b.now().Add(b.cooldown)
	}
	return b.failures[sourceID]
}

// BeginFetch marks a source's fetch as outstanding. Returns false if a
// previous cycle's attempt has not finished yet.
func (b *Breaker) BeginFetch(sourceID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inflight[sourceID] {
		return false
	}
	b.inflight[sourceID] = true
	return true
}

// EndFetch clears the outstanding-fetch mark.
func (b *Breaker) EndFetch(sourceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, sourceID)
}

// Snapshot returns the breaker state for every tracked source.
func (b *Breaker) Snapshot() map[string]BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]BreakerState, len(b.failures))
	for id, n := range b.failures {
		until, open := b.openUntil[id]
		out[id] = BreakerState{
			Failures:  n,
			Open:      open && b.now().Before(until),
			OpenUntil: until,
		}
	}
	return out
}
