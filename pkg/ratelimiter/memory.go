package ratelimiter

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens     int64
	lastRefill time.Time
}

// MemoryStore is an in-process Store suitable for single-instance
// deployments and tests. Buckets idle past their refill horizon are
// dropped by a background janitor.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewMemoryStore returns a MemoryStore with a janitor sweeping at the
// given interval. Pass a non-positive interval to disable the janitor.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		go s.janitor(cleanupInterval)
	}
	return s
}

// ConsumeTokens implements Store.
func (s *MemoryStore) ConsumeTokens(ctx context.Context, key string, tokens int64, config Config) (Result, error) {
	if config.Capacity <= 0 || config.RefillRate <= 0 || config.RefillInterval <= 0 {
		return Result{}, ErrInvalidConfig
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{tokens: config.Capacity, lastRefill: now}
		s.buckets[key] = b
	} else {
		refill(b, config, now)
	}

	b.tokens -= tokens

	res := Result{
		Limit:     config.Capacity,
		Remaining: b.tokens,
		ResetAt:   resetAt(b, config, now),
	}
	if b.tokens < 0 {
		// Denied attempts do not drain the bucket below empty.
		b.tokens = 0
	}
	return res, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.buckets, key)
	s.mu.Unlock()
	return nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-t.C:
			s.mu.Lock()
			for key, b := range s.buckets {
				if now.Sub(b.lastRefill) > 2*interval {
					delete(s.buckets, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

func refill(b *bucket, config Config, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < config.RefillInterval {
		return
	}
	intervals := int64(elapsed / config.RefillInterval)
	b.tokens += intervals * config.RefillRate
	if b.tokens > config.Capacity {
		b.tokens = config.Capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * config.RefillInterval)
}

func resetAt(b *bucket, config Config, now time.Time) time.Time {
	missing := config.Capacity - b.tokens
	if missing <= 0 {
		return now
	}
	intervals := (missing + config.RefillRate - 1) / config.RefillRate
	return b.lastRefill.Add(time.Duration(intervals) * config.RefillInterval)
}
