package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/serumledger/internal/domain"
	"github.com/alanyoungcy/serumledger/internal/ledger"
)

// LedgerCache implements domain.LedgerCache with one JSON string per account.
//
// Key schema:
//
//	ledger:v{columns version}:{account}
type LedgerCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLedgerCache creates a LedgerCache whose entries expire after ttl.
func NewLedgerCache(c *Client, ttl time.Duration) *LedgerCache {
	return &LedgerCache{rdb: c.Underlying(), ttl: ttl}
}

func ledgerKey(account string) string {
	return "ledger:v" + strconv.Itoa(ledger.ColumnsVersion) + ":" + account
}

// cachedTransaction keeps the source event id, which the API encoding omits.
type cachedTransaction struct {
	domain.Transaction
	EventID int64 `json:"source_event_id"`
}

type cachedLedger struct {
	Account      string              `json:"account"`
	Transactions []cachedTransaction `json:"transactions"`
	Dropped      *int64              `json:"dropped,omitempty"`
}

func encodeLedger(l domain.Ledger) ([]byte, error) {
	c := cachedLedger{
		Account:      l.Account,
		Transactions: make([]cachedTransaction, len(l.Transactions)),
		Dropped:      l.Dropped,
	}
	for i, tx := range l.Transactions {
		c.Transactions[i] = cachedTransaction{Transaction: tx, EventID: tx.SourceEventID}
	}
	return json.Marshal(c)
}

func decodeLedger(data []byte) (domain.Ledger, error) {
	var c cachedLedger
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.Ledger{}, err
	}
	l := domain.Ledger{
		Account:      c.Account,
		Transactions: make([]domain.Transaction, len(c.Transactions)),
		Dropped:      c.Dropped,
	}
	for i, ct := range c.Transactions {
		tx := ct.Transaction
		tx.SourceEventID = ct.EventID
		l.Transactions[i] = tx
	}
	return l, nil
}

// Get returns the cached ledger for account, or domain.ErrNotFound.
func (lc *LedgerCache) Get(ctx context.Context, account string) (domain.Ledger, error) {
	data, err := lc.rdb.Get(ctx, ledgerKey(account)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Ledger{}, domain.ErrNotFound
		}
		return domain.Ledger{}, fmt.Errorf("redis: get ledger %s: %w", account, err)
	}

	l, err := decodeLedger(data)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("redis: unmarshal ledger %s: %w", account, err)
	}
	return l, nil
}

// Set stores the ledger under its account.
func (lc *LedgerCache) Set(ctx context.Context, l domain.Ledger) error {
	data, err := encodeLedger(l)
	if err != nil {
		return fmt.Errorf("redis: marshal ledger %s: %w", l.Account, err)
	}
	if err := lc.rdb.Set(ctx, ledgerKey(l.Account), data, lc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set ledger %s: %w", l.Account, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LedgerCache = (*LedgerCache)(nil)
