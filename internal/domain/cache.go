package domain

import (
	"context"
	"time"
)

// PriceCache caches last-seen oracle prices. It is a fast path for current
// price reads only; historical reads for resolution always hit the oracle.
type PriceCache interface {
	SetPrice(ctx context.Context, asset string, price int64, ts time.Time) error
	// GetPrice returns ErrNotFound when no observation is cached.
	GetPrice(ctx context.Context, asset string) (int64, time.Time, error)
}

// LockManager provides distributed locks. Resolution takes a per-prediction
// lock to avoid concurrent sweeps wasting oracle reads; correctness never
// depends on it.
type LockManager interface {
	// Acquire returns an unlock function, or ErrLockHeld when the lock is
	// already taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter throttles outbound calls shared across processes, keyed by
// resource name.
type RateLimiter interface {
	// Allow reports whether one more request fits in the sliding window,
	// counting it when it does.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Wait blocks until a request is allowed or ctx is cancelled.
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}
