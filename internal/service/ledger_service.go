package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/serumledger/internal/domain"
	"github.com/alanyoungcy/serumledger/internal/ledger"
)

// LedgerConfig tunes how ledgers are served.
type LedgerConfig struct {
	// QueryTimeout bounds each storage round trip. Zero disables the bound.
	QueryTimeout time.Duration
	// CountDropped reports how many filled events were excluded for missing
	// currency metadata.
	CountDropped bool
}

// LedgerService serves reconstructed ledgers, optionally through a cache.
type LedgerService struct {
	recon  *ledger.Reconstructor
	fills  domain.FillStore
	cache  domain.LedgerCache
	cfg    LedgerConfig
	logger *slog.Logger
}

// NewLedgerService creates a LedgerService. cache may be nil.
func NewLedgerService(
	fills domain.FillStore,
	cache domain.LedgerCache,
	cfg LedgerConfig,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		recon:  ledger.NewReconstructor(fills),
		fills:  fills,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ledger_service")),
	}
}

// GetLedger returns the most recent transactions of account. Failures wrap
// domain.ErrStorageUnavailable or domain.ErrMalformedRelation.
func (s *LedgerService) GetLedger(ctx context.Context, account string) (domain.Ledger, error) {
	if s.cache != nil {
		l, err := s.cache.Get(ctx, account)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "ledger_service: cache get failed",
				slog.String("account", account),
				slog.String("error", err.Error()),
			)
		}
	}

	qctx, cancel := s.queryContext(ctx)
	defer cancel()

	start := time.Now()
	txs, err := s.recon.Reconstruct(qctx, account)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("ledger_service: reconstruct %q: %w", account, err)
	}

	l := domain.Ledger{Account: account, Transactions: txs}
	if s.cfg.CountDropped {
		n, err := s.fills.CountUnresolved(qctx, account)
		if err != nil {
			return domain.Ledger{}, fmt.Errorf("ledger_service: count dropped %q: %w", account, err)
		}
		l.Dropped = &n
	}

	s.logger.DebugContext(ctx, "ledger_service: reconstructed ledger",
		slog.String("account", account),
		slog.Int("transactions", len(txs)),
		slog.Duration("duration", time.Since(start)),
	)

	if s.cache != nil {
		if err := s.cache.Set(ctx, l); err != nil {
			s.logger.WarnContext(ctx, "ledger_service: cache set failed",
				slog.String("account", account),
				slog.String("error", err.Error()),
			)
		}
	}
	return l, nil
}

// Ping reports whether the storage provider is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	qctx, cancel := s.queryContext(ctx)
	defer cancel()
	if err := s.fills.Ping(qctx); err != nil {
		return fmt.Errorf("ledger_service: ping: %w", err)
	}
	return nil
}

func (s *LedgerService) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.QueryTimeout)
}
