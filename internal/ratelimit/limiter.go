// Package ratelimit bounds request frequency per key with fixed windows.
// Counters live behind the RateStore interface so a multi-instance
// deployment can share them through Redis while single-instance runs and
// tests use the in-memory store; call sites never change.
package ratelimit

import (
	"context"
	"time"
)

// Policy bounds one route class: at most Max requests per Window.
type Policy struct {
	Max    int
	Window time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateStore increments a windowed counter and reports the count together
// with the time left until the window resets. Implementations must make the
// increment atomic under concurrent calls for the same key.
type RateStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// Limiter evaluates policies against a RateStore.
type Limiter struct {
	store RateStore
}

func NewLimiter(store RateStore) *Limiter {
	return &Limiter{store: store}
}

// Allow counts one request against the key's window and decides whether it
// fits the policy. A denied request has already been counted; the only
// effect reported back is RetryAfter. On a store error the decision is
// permissive (fail open) and the error is returned for logging.
func (l *Limiter) Allow(ctx context.Context, key string, p Policy) (Decision, error) {
	count, resetIn, err := l.store.Incr(ctx, key, p.Window)
	if err != nil {
		return Decision{Allowed: true, Remaining: p.Max}, err
	}

	remaining := p.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   count <= int64(p.Max),
		Remaining: remaining,
	}
	if !d.Allowed {
		d.RetryAfter = resetIn
	}
	return d, nil
}
