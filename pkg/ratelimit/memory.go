package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// sweepChance is the fraction of calls that trigger an expired-record sweep.
// Opportunistic cleanup bounds memory growth without a background timer.
const sweepChance = 0.01

type record struct {
	count   int
	resetAt time.Time
}

// MemoryStore is the in-process fixed-window counter store. It backs the
// fallback path and is also usable standalone in tests and single-instance
// deployments. State is lost on process restart; that is an accepted
// approximation for a fallback, not a bug.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record

	// now and chance are injectable for deterministic tests.
	now    func() time.Time
	chance func() float64
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*record),
		now:     time.Now,
		chance:  rand.Float64,
	}
}

// Take runs the fixed-window algorithm for the identifier. It never returns
// an error; the error return satisfies Store.
func (s *MemoryStore) Take(_ context.Context, identifier string, limit Limit) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if s.chance() < sweepChance {
		s.sweepLocked(now)
	}

	rec, ok := s.records[identifier]
	if !ok || !now.Before(rec.resetAt) {
		rec = &record{count: 1, resetAt: now.Add(limit.Window)}
		s.records[identifier] = rec
		return Result{
			Allowed:   true,
			Limit:     limit.MaxRequests,
			Remaining: limit.MaxRequests - 1,
			ResetAt:   rec.resetAt,
		}, nil
	}

	if rec.count >= limit.MaxRequests {
		return Result{
			Allowed:   false,
			Limit:     limit.MaxRequests,
			Remaining: 0,
			ResetAt:   rec.resetAt,
		}, nil
	}

	rec.count++
	return Result{
		Allowed:   true,
		Limit:     limit.MaxRequests,
		Remaining: limit.MaxRequests - rec.count,
		ResetAt:   rec.resetAt,
	}, nil
}

// sweepLocked deletes every record whose window has passed. Callers must hold
// the mutex.
func (s *MemoryStore) sweepLocked(now time.Time) {
	for id, rec := range s.records {
		if !now.Before(rec.resetAt) {
			delete(s.records, id)
		}
	}
}

// Len reports the number of live records, for tests and stats.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
