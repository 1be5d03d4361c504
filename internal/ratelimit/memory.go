package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// MemoryStore backs the "memory" rate-limit backend: a size-bounded LRU of
// per-key token-bucket governors. Eviction under memory pressure is
// intentional per the specification — a governor evicted before its bucket
// drains simply starts over full, which only makes the limiter more
// permissive, never less.
type MemoryStore struct {
	mu      sync.Mutex
	buckets *lru.Cache[Key, *rate.Limiter]
}

func NewMemoryStore(maxEntries int) (*MemoryStore, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	cache, err := lru.New[Key, *rate.Limiter](maxEntries)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{buckets: cache}, nil
}

func (s *MemoryStore) CheckAndConsume(_ context.Context, key Key, rule Rule, n int64) (Decision, error) {
	s.mu.Lock()
	limiter, ok := s.buckets.Get(key)
	if !ok {
		limiter = newLimiter(rule)
		s.buckets.Add(key, limiter)
	}
	s.mu.Unlock()

	now := time.Now()
	if !limiter.AllowN(now, int(n)) {
		reservation := limiter.ReserveN(now, int(n))
		retryAfter := reservation.Delay()
		reservation.Cancel()
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return Decision{Allowed: true, Remaining: int64(limiter.Tokens())}, nil
}

func (s *MemoryStore) Close() error { return nil }

func newLimiter(rule Rule) *rate.Limiter {
	perSecond := float64(rule.Limit) / rule.Interval.Seconds()
	return rate.NewLimiter(rate.Limit(perSecond), int(rule.Limit))
}
