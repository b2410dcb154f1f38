package domain

import (
	"context"
	"time"
)

// LedgerCache keeps recently reconstructed ledgers for a short time.
type LedgerCache interface {
	Get(ctx context.Context, account string) (Ledger, error)
	Set(ctx context.Context, ledger Ledger) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking. The returned release function is
// safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
