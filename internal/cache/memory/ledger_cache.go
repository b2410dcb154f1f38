// Package memory provides an in-process ledger cache for deployments without
// Redis.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/alanyoungcy/serumledger/internal/domain"
)

// LedgerCache implements domain.LedgerCache with a size-bounded LRU whose
// entries expire after a fixed TTL. It is safe for concurrent use.
type LedgerCache struct {
	lru *expirable.LRU[string, domain.Ledger]
}

// NewLedgerCache keeps at most size ledgers for ttl each.
func NewLedgerCache(size int, ttl time.Duration) *LedgerCache {
	return &LedgerCache{lru: expirable.NewLRU[string, domain.Ledger](size, nil, ttl)}
}

// Get returns the cached ledger for account, or domain.ErrNotFound.
func (c *LedgerCache) Get(_ context.Context, account string) (domain.Ledger, error) {
	l, ok := c.lru.Get(account)
	if !ok {
		return domain.Ledger{}, domain.ErrNotFound
	}
	return clone(l), nil
}

// Set stores a copy of l under its account.
func (c *LedgerCache) Set(_ context.Context, l domain.Ledger) error {
	c.lru.Add(l.Account, clone(l))
	return nil
}

// clone detaches the transaction slice so callers cannot mutate cached state.
func clone(l domain.Ledger) domain.Ledger {
	txs := make([]domain.Transaction, len(l.Transactions))
	copy(txs, l.Transactions)
	l.Transactions = txs
	if l.Dropped != nil {
		n := *l.Dropped
		l.Dropped = &n
	}
	return l
}

var _ domain.LedgerCache = (*LedgerCache)(nil)
