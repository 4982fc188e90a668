package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count    int64
	deadline time.Time
}

// MemoryStore is an in-process RateStore. Counters do not survive a restart
// and are not shared across instances; use the cache-backed store for that.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

func (s *MemoryStore) Incr(_ context.Context, key string, win time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.windows[key]
	if !ok || now.After(w.deadline) {
		w = &window{deadline: now.Add(win)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.deadline.Sub(now), nil
}
