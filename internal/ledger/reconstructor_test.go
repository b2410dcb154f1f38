package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/serumledger/internal/domain"
)

var (
	usdcSol = domain.MarketScope{MarketAddress: "9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT", ProgramID: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"}
	otherMk = domain.MarketScope{MarketAddress: "HWHvQhFmJB3NUcu1aihKmrKegfVxBEHzwVX6yZCKEsi1", ProgramID: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"}
	baseTS  = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
)

// relations is an in-memory copy of the three ledger relations. ListFills
// joins them the way the SQL provider does, keeping rows whose metadata is
// missing so the Reconstructor's own filtering is exercised.
type relations struct {
	owners []domain.Ownership
	events []domain.FillEvent
	metas  []domain.CurrencyMeta
	err    error
	query  domain.FillQuery
}

func (r *relations) ListFills(ctx context.Context, q domain.FillQuery) ([]domain.FillRow, error) {
	r.query = q
	if r.err != nil {
		return nil, r.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slots := map[string]bool{}
	for _, o := range r.owners {
		if o.Owner == q.Owner {
			slots[o.OpenOrders] = true
		}
	}
	var rows []domain.FillRow
	for _, ev := range r.events {
		if !slots[ev.OpenOrders] || !ev.Fill {
			continue
		}
		rows = append(rows, domain.FillRow{
			Event: ev,
			Quote: r.meta(ev.QuoteCurrency, ev.MarketScope),
			Base:  r.meta(ev.BaseCurrency, ev.MarketScope),
		})
	}
	return rows, nil
}

func (r *relations) meta(currency string, scope domain.MarketScope) *domain.CurrencyMeta {
	for i := range r.metas {
		if r.metas[i].Currency == currency && r.metas[i].MarketScope == scope {
			m := r.metas[i]
			return &m
		}
	}
	return nil
}

func (r *relations) CountUnresolved(ctx context.Context, owner string) (int64, error) {
	return 0, nil
}

func (r *relations) Ping(ctx context.Context) error { return nil }

func fillEvent(id int64, slot string, ts time.Time, bid, maker bool) domain.FillEvent {
	return domain.FillEvent{
		ID:                     id,
		LoadTimestamp:          ts,
		OpenOrders:             slot,
		Bid:                    bid,
		Maker:                  maker,
		Fill:                   true,
		NativeQuantityPaid:     decimal.NewFromInt(1000000),
		NativeQuantityReleased: decimal.NewFromInt(2000000),
		NativeFeeOrRebate:      decimal.NewFromInt(1000),
		QuoteCurrency:          "USDC",
		BaseCurrency:           "SOL",
		MarketScope:            usdcSol,
	}
}

func scenario() *relations {
	return &relations{
		owners: []domain.Ownership{{OpenOrders: "S1", Owner: "A1"}},
		events: []domain.FillEvent{fillEvent(5, "S1", baseTS, true, false)},
		metas: []domain.CurrencyMeta{
			{Currency: "USDC", MintDecimals: 6, MarketScope: usdcSol},
			{Currency: "SOL", MintDecimals: 9, MarketScope: usdcSol},
		},
	}
}

func TestReconstructBidTaker(t *testing.T) {
	txs, err := NewReconstructor(scenario()).Reconstruct(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, baseTS, tx.DateAndTime)
	assert.Equal(t, "trade", tx.TransactionType)
	assert.Equal(t, "1", tx.SentQuantity.String())
	assert.Equal(t, "USDC", tx.SentCurrency)
	assert.Equal(t, "serum", tx.SendingSource)
	assert.Equal(t, "0.002", tx.ReceivedQuantity.String())
	assert.Equal(t, "SOL", tx.ReceivedCurrency)
	assert.Equal(t, "serum", tx.ReceivingDestination)
	assert.Equal(t, "0.001", tx.Fee.String())
	assert.Equal(t, "USDC", tx.FeeCurrency)
	assert.Nil(t, tx.ExchangeTransactionID)
	assert.Nil(t, tx.BlockchainTransactionHash)
	assert.Equal(t, int64(5), tx.SourceEventID)
}

func TestReconstructMakerRebateIsNegative(t *testing.T) {
	rel := scenario()
	rel.events[0].Maker = true

	txs, err := NewReconstructor(rel).Reconstruct(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, "-0.001", txs[0].Fee.String())
	assert.Equal(t, "1", txs[0].SentQuantity.String())
	assert.Equal(t, "0.002", txs[0].ReceivedQuantity.String())
}

func TestReconstructAskDirection(t *testing.T) {
	rel := scenario()
	rel.events[0].Bid = false
	rel.events[0].NativeQuantityPaid = decimal.NewFromInt(3000000000)
	rel.events[0].NativeQuantityReleased = decimal.NewFromInt(45500000)

	txs, err := NewReconstructor(rel).Reconstruct(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, "SOL", txs[0].SentCurrency)
	assert.Equal(t, "3", txs[0].SentQuantity.String())
	assert.Equal(t, "USDC", txs[0].ReceivedCurrency)
	assert.Equal(t, "45.5", txs[0].ReceivedQuantity.String())
	assert.Equal(t, "USDC", txs[0].FeeCurrency)
}

func TestReconstructUnknownAccountIsEmpty(t *testing.T) {
	for _, account := range []string{"nobody", "", "not a pubkey'; drop table owners;--"} {
		txs, err := NewReconstructor(scenario()).Reconstruct(context.Background(), account)
		require.NoError(t, err)
		assert.Empty(t, txs)
		assert.NotNil(t, txs)
	}
}

func TestReconstructDropsEventWithoutBaseMetadata(t *testing.T) {
	rel := scenario()
	rel.events = append(rel.events, fillEvent(6, "S1", baseTS.Add(time.Minute), true, false))
	rel.events[1].MarketScope = otherMk
	// SOL is known elsewhere, USDC is known in this market, SOL is not.
	rel.metas = append(rel.metas, domain.CurrencyMeta{Currency: "USDC", MintDecimals: 6, MarketScope: otherMk})

	txs, err := NewReconstructor(rel).Reconstruct(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(5), txs[0].SourceEventID)
}

func TestReconstructSkipsNonFillRows(t *testing.T) {
	store := &staticFills{rows: []domain.FillRow{
		{Event: func() domain.FillEvent { ev := fillEvent(1, "S1", baseTS, true, false); ev.Fill = false; return ev }(),
			Quote: &domain.CurrencyMeta{Currency: "USDC", MintDecimals: 6, MarketScope: usdcSol},
			Base:  &domain.CurrencyMeta{Currency: "SOL", MintDecimals: 9, MarketScope: usdcSol}},
	}}

	txs, err := NewReconstructor(store).Reconstruct(context.Background(), "A1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestReconstructRejectsMetadataFromAnotherScope(t *testing.T) {
	store := &staticFills{rows: []domain.FillRow{
		{Event: fillEvent(1, "S1", baseTS, true, false),
			Quote: &domain.CurrencyMeta{Currency: "USDC", MintDecimals: 6, MarketScope: usdcSol},
			Base:  &domain.CurrencyMeta{Currency: "SOL", MintDecimals: 9, MarketScope: otherMk}},
	}}

	txs, err := NewReconstructor(store).Reconstruct(context.Background(), "A1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestReconstructOrderingAndCap(t *testing.T) {
	rel := scenario()
	rel.events = nil
	rel.owners = append(rel.owners, domain.Ownership{OpenOrders: "S2", Owner: "A1"})
	var id int64
	for i := 0; i < 130; i++ {
		id++
		slot := "S1"
		if i%2 == 1 {
			slot = "S2"
		}
		// Ten events share each timestamp and ids are inserted out of order.
		ts := baseTS.Add(time.Duration(i/10) * time.Second)
		ev := fillEvent(1000-id, slot, ts, i%3 == 0, i%4 == 0)
		rel.events = append(rel.events, ev)
	}

	txs, err := NewReconstructor(rel).Reconstruct(context.Background(), "A1")
	require.NoError(t, err)
	assert.Len(t, txs, MaxTransactions)
	assert.Equal(t, MaxTransactions, rel.query.Limit)

	for i := 1; i < len(txs); i++ {
		a, b := txs[i-1], txs[i]
		ok := a.DateAndTime.After(b.DateAndTime) ||
			(a.DateAndTime.Equal(b.DateAndTime) && a.SourceEventID < b.SourceEventID)
		assert.True(t, ok, "record %d (%v,%d) not before %d (%v,%d)",
			i-1, a.DateAndTime, a.SourceEventID, i, b.DateAndTime, b.SourceEventID)
	}
	// The newest timestamp bucket comes first.
	assert.Equal(t, baseTS.Add(12*time.Second), txs[0].DateAndTime)
}

func TestReconstructLaws(t *testing.T) {
	rel := scenario()
	rel.events = nil
	for i := 0; i < 40; i++ {
		ev := fillEvent(int64(i+1), "S1", baseTS.Add(time.Duration(i)*time.Minute), i%2 == 0, i%3 == 0)
		ev.NativeFeeOrRebate = decimal.NewFromInt(int64(i * 17))
		rel.events = append(rel.events, ev)
	}
	byID := map[int64]domain.FillEvent{}
	for _, ev := range rel.events {
		byID[ev.ID] = ev
	}

	txs, err := NewReconstructor(rel).Reconstruct(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, txs, 40)

	for _, tx := range txs {
		ev := byID[tx.SourceEventID]
		assert.NotEqual(t, tx.SentCurrency, tx.ReceivedCurrency)
		if ev.Bid {
			assert.Equal(t, ev.QuoteCurrency, tx.SentCurrency)
			assert.Equal(t, ev.BaseCurrency, tx.ReceivedCurrency)
		} else {
			assert.Equal(t, ev.BaseCurrency, tx.SentCurrency)
			assert.Equal(t, ev.QuoteCurrency, tx.ReceivedCurrency)
		}
		if ev.Maker {
			assert.True(t, tx.Fee.LessThanOrEqual(decimal.Zero), "maker fee %s", tx.Fee)
		} else {
			assert.True(t, tx.Fee.GreaterThanOrEqual(decimal.Zero), "taker fee %s", tx.Fee)
		}
	}
	assert.True(t, sort.SliceIsSorted(txs, func(i, j int) bool {
		return txs[i].DateAndTime.After(txs[j].DateAndTime)
	}))
}

func TestReconstructStorageErrors(t *testing.T) {
	malformed := fmt.Errorf("postgres: scan fill: %w", domain.ErrMalformedRelation)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unclassified", errors.New("connection refused"), domain.ErrStorageUnavailable},
		{"cancelled", context.Canceled, domain.ErrStorageUnavailable},
		{"deadline", context.DeadlineExceeded, domain.ErrStorageUnavailable},
		{"malformed", malformed, domain.ErrMalformedRelation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := scenario()
			rel.err = tt.err

			txs, err := NewReconstructor(rel).Reconstruct(context.Background(), "A1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, txs)
		})
	}
}

func TestReconstructCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	txs, err := NewReconstructor(scenario()).Reconstruct(ctx, "A1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Nil(t, txs)
}

type staticFills struct {
	rows []domain.FillRow
}

func (s *staticFills) ListFills(ctx context.Context, q domain.FillQuery) ([]domain.FillRow, error) {
	return s.rows, nil
}

func (s *staticFills) CountUnresolved(ctx context.Context, owner string) (int64, error) {
	return 0, nil
}

func (s *staticFills) Ping(ctx context.Context) error { return nil }
