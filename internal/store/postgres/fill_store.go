package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/serumledger/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a new FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Native amounts are selected as text so values wider than int64 decode
// without loss.
const listFillsQuery = `
	SELECT e.id, e.load_timestamp, e.open_orders, e.open_orders_slot, e.fee_tier,
		e.bid, e.maker, e.fill, e.out,
		e.native_quantity_paid::TEXT, e.native_quantity_released::TEXT, e.native_fee_or_rebate::TEXT,
		e.quote_currency, e.base_currency, e.order_id, e.client_order_id,
		e.market_address, e.program_id,
		quote.mint_decimals, base.mint_decimals
	FROM owners o
	INNER JOIN fill_events e
		ON e.open_orders = o.open_orders
	INNER JOIN currency_meta quote
		ON quote.currency = e.quote_currency
		AND quote.market_address = e.market_address
		AND quote.program_id = e.program_id
	INNER JOIN currency_meta base
		ON base.currency = e.base_currency
		AND base.market_address = e.market_address
		AND base.program_id = e.program_id
	WHERE o.owner = $1
		AND e.fill
	ORDER BY e.load_timestamp DESC, e.id ASC
	LIMIT $2`

const countUnresolvedQuery = `
	SELECT COUNT(*)
	FROM owners o
	INNER JOIN fill_events e
		ON e.open_orders = o.open_orders
	LEFT JOIN currency_meta quote
		ON quote.currency = e.quote_currency
		AND quote.market_address = e.market_address
		AND quote.program_id = e.program_id
	LEFT JOIN currency_meta base
		ON base.currency = e.base_currency
		AND base.market_address = e.market_address
		AND base.program_id = e.program_id
	WHERE o.owner = $1
		AND e.fill
		AND (quote.currency IS NULL OR base.currency IS NULL)`

// rowScanner is the part of pgx.Rows the decoder needs.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanFillRow decodes one row of listFillsQuery.
func scanFillRow(row rowScanner) (domain.FillRow, error) {
	var (
		ev                      domain.FillEvent
		paid, released, feeText string
		quoteDec, baseDec       int32
		ts                      time.Time
	)
	if err := row.Scan(
		&ev.ID, &ts, &ev.OpenOrders, &ev.OpenOrdersSlot, &ev.FeeTier,
		&ev.Bid, &ev.Maker, &ev.Fill, &ev.Out,
		&paid, &released, &feeText,
		&ev.QuoteCurrency, &ev.BaseCurrency, &ev.OrderID, &ev.ClientOrderID,
		&ev.MarketAddress, &ev.ProgramID,
		&quoteDec, &baseDec,
	); err != nil {
		return domain.FillRow{}, err
	}
	ev.LoadTimestamp = ts.UTC()

	var err error
	if ev.NativeQuantityPaid, err = parseNative("native_quantity_paid", paid); err != nil {
		return domain.FillRow{}, err
	}
	if ev.NativeQuantityReleased, err = parseNative("native_quantity_released", released); err != nil {
		return domain.FillRow{}, err
	}
	if ev.NativeFeeOrRebate, err = parseNative("native_fee_or_rebate", feeText); err != nil {
		return domain.FillRow{}, err
	}

	return domain.FillRow{
		Event: ev,
		Quote: &domain.CurrencyMeta{Currency: ev.QuoteCurrency, MintDecimals: quoteDec, MarketScope: ev.MarketScope},
		Base:  &domain.CurrencyMeta{Currency: ev.BaseCurrency, MintDecimals: baseDec, MarketScope: ev.MarketScope},
	}, nil
}

// parseNative decodes a native integer amount.
func parseNative(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("column %s: %w", column, err)
	}
	if !d.IsInteger() {
		return decimal.Decimal{}, fmt.Errorf("column %s: %q is not an integer amount", column, s)
	}
	return d, nil
}

// ListFills runs the ledger join for q.Owner. The owner is always bound as a
// parameter.
func (s *FillStore) ListFills(ctx context.Context, q domain.FillQuery) ([]domain.FillRow, error) {
	rows, err := s.pool.Query(ctx, listFillsQuery, q.Owner, q.Limit)
	if err != nil {
		return nil, classify(ctx, "list fills", err)
	}
	defer rows.Close()

	var out []domain.FillRow
	for rows.Next() {
		fr, err := scanFillRow(rows)
		if err != nil {
			return nil, malformed(ctx, "scan fill", err)
		}
		out = append(out, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, "list fills rows", err)
	}
	return out, nil
}

// CountUnresolved counts filled events of owner lacking quote or base
// metadata in their own market scope.
func (s *FillStore) CountUnresolved(ctx context.Context, owner string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, countUnresolvedQuery, owner).Scan(&n); err != nil {
		return 0, classify(ctx, "count unresolved fills", err)
	}
	return n, nil
}

// Ping verifies that a pooled connection can reach the server.
func (s *FillStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify(ctx, "ping", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.FillStore = (*FillStore)(nil)
