package ratelimit

import (
	"context"
	"time"

	"github.com/doclens/doclens/internal/cache"
)

// CacheStore backs the limiter with the shared Redis cache so that rate
// windows are meaningful across multiple server instances.
type CacheStore struct {
	cache cache.Cache
}

func NewCacheStore(c cache.Cache) *CacheStore {
	return &CacheStore{cache: c}
}

func (s *CacheStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return s.cache.IncrWindow(ctx, key, window)
}
