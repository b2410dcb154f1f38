// Package ledger rebuilds an account's trade ledger from Serum fill events.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/alanyoungcy/serumledger/internal/domain"
)

// MaxTransactions caps the number of records a single reconstruction returns.
const MaxTransactions = 100

// Reconstructor turns the fill events of one account into ledger lines. It
// holds no mutable state and is safe for concurrent use.
type Reconstructor struct {
	fills domain.FillStore
}

// NewReconstructor creates a Reconstructor reading from fills.
func NewReconstructor(fills domain.FillStore) *Reconstructor {
	return &Reconstructor{fills: fills}
}

// Reconstruct returns the most recent trades of account, newest first. An
// unknown account yields an empty slice. Storage failures are reported as
// domain.ErrStorageUnavailable or domain.ErrMalformedRelation and no partial
// result is returned.
func (r *Reconstructor) Reconstruct(ctx context.Context, account string) ([]domain.Transaction, error) {
	rows, err := r.fills.ListFills(ctx, domain.FillQuery{
		Owner: account,
		Limit: MaxTransactions,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: list fills: %w", storageError(err))
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, ok := Normalize(row)
		if !ok {
			continue
		}
		txs = append(txs, tx)
	}

	sortTransactions(txs)
	if len(txs) > MaxTransactions {
		txs = txs[:MaxTransactions]
	}
	return txs, nil
}

// Normalize builds the ledger line for one joined fill row. It reports false
// when the row is not an eligible trade: not a fill, or quote or base metadata
// missing from the event's own market scope.
func Normalize(row domain.FillRow) (domain.Transaction, bool) {
	ev := row.Event
	if !ev.Fill {
		return domain.Transaction{}, false
	}
	quote, ok := resolve(row.Quote, ev.QuoteCurrency, ev.MarketScope)
	if !ok {
		return domain.Transaction{}, false
	}
	base, ok := resolve(row.Base, ev.BaseCurrency, ev.MarketScope)
	if !ok {
		return domain.Transaction{}, false
	}

	tx := domain.Transaction{
		DateAndTime:          ev.LoadTimestamp,
		TransactionType:      domain.TransactionTypeTrade,
		SendingSource:        domain.VenueSerum,
		ReceivingDestination: domain.VenueSerum,
		FeeCurrency:          ev.QuoteCurrency,
		SourceEventID:        ev.ID,
	}

	// A bid pays quote to receive base; an ask pays base to receive quote.
	if ev.Bid {
		tx.SentQuantity = ScaleNative(ev.NativeQuantityPaid, quote.MintDecimals)
		tx.SentCurrency = ev.QuoteCurrency
		tx.ReceivedQuantity = ScaleNative(ev.NativeQuantityReleased, base.MintDecimals)
		tx.ReceivedCurrency = ev.BaseCurrency
	} else {
		tx.SentQuantity = ScaleNative(ev.NativeQuantityPaid, base.MintDecimals)
		tx.SentCurrency = ev.BaseCurrency
		tx.ReceivedQuantity = ScaleNative(ev.NativeQuantityReleased, quote.MintDecimals)
		tx.ReceivedCurrency = ev.QuoteCurrency
	}

	tx.Fee = ScaleNative(ev.NativeFeeOrRebate, quote.MintDecimals)
	if ev.Maker {
		tx.Fee = tx.Fee.Neg()
	}
	return tx, true
}

// resolve checks that meta describes currency within scope.
func resolve(meta *domain.CurrencyMeta, currency string, scope domain.MarketScope) (*domain.CurrencyMeta, bool) {
	if meta == nil || meta.Currency != currency || meta.MarketScope != scope {
		return nil, false
	}
	return meta, true
}

// sortTransactions orders by timestamp descending, then source event id
// ascending.
func sortTransactions(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.DateAndTime.Equal(b.DateAndTime) {
			return a.DateAndTime.After(b.DateAndTime)
		}
		return a.SourceEventID < b.SourceEventID
	})
}

// storageError makes sure every failure carries one of the storage sentinels.
// Anything the provider did not classify, cancellation included, means it
// could not answer.
func storageError(err error) error {
	if errors.Is(err, domain.ErrMalformedRelation) || errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}
