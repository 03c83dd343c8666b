package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds the number of subjects a MemoryStore tracks.
const DefaultMemoryEntries = 10000

type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in a bounded in-process LRU. Limits only hold
// within one process; the least recently seen subjects are evicted first.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, window]
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore tracking at most size subjects.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	c, err := lru.New[string, window](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{cache: c, now: time.Now}, nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, d time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.cache.Get(key)
	if !ok || !now.Before(w.expiresAt) {
		w = window{expiresAt: now.Add(d)}
	}
	w.count++
	s.cache.Add(key, w)
	return w.count, w.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.cache.Peek(key)
	if !ok {
		return 0, 0, nil
	}
	if !now.Before(w.expiresAt) {
		s.cache.Remove(key)
		return 0, 0, nil
	}
	return w.count, w.expiresAt.Sub(now), nil
}
