package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/serumledger/internal/domain"
)

var (
	testScope = domain.MarketScope{MarketAddress: "9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT", ProgramID: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"}
	testTS    = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
)

func testRow(id int64, bid, maker bool) domain.FillRow {
	return domain.FillRow{
		Event: domain.FillEvent{
			ID:                     id,
			LoadTimestamp:          testTS.Add(time.Duration(id) * time.Minute),
			OpenOrders:             "S1",
			Bid:                    bid,
			Maker:                  maker,
			Fill:                   true,
			NativeQuantityPaid:     decimal.NewFromInt(1000000),
			NativeQuantityReleased: decimal.NewFromInt(2000000),
			NativeFeeOrRebate:      decimal.NewFromInt(1000),
			QuoteCurrency:          "USDC",
			BaseCurrency:           "SOL",
			MarketScope:            testScope,
		},
		Quote: &domain.CurrencyMeta{Currency: "USDC", MintDecimals: 6, MarketScope: testScope},
		Base:  &domain.CurrencyMeta{Currency: "SOL", MintDecimals: 9, MarketScope: testScope},
	}
}

// fakeFills serves fixed rows per owner.
type fakeFills struct {
	mu         sync.Mutex
	rows       map[string][]domain.FillRow
	unresolved int64
	block      bool
	listErr    error
	countErr   error
	calls      int
}

func (f *fakeFills) ListFills(ctx context.Context, q domain.FillQuery) ([]domain.FillRow, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rows[q.Owner], nil
}

func (f *fakeFills) CountUnresolved(ctx context.Context, owner string) (int64, error) {
	return f.unresolved, f.countErr
}

func (f *fakeFills) Ping(ctx context.Context) error { return f.listErr }

// fakeCache is an in-memory domain.LedgerCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.Ledger
	getErr  error
}

func (c *fakeCache) Get(ctx context.Context, account string) (domain.Ledger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return domain.Ledger{}, c.getErr
	}
	l, ok := c.entries[account]
	if !ok {
		return domain.Ledger{}, domain.ErrNotFound
	}
	return l, nil
}

func (c *fakeCache) Set(ctx context.Context, l domain.Ledger) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]domain.Ledger{}
	}
	c.entries[l.Account] = l
	return nil
}

// fakeBlob records uploaded objects.
type fakeBlob struct {
	mu          sync.Mutex
	objects     map[string][]byte
	contentType map[string]string
	multipart   int
	err         error
}

func (b *fakeBlob) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if b.err != nil {
		return b.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.objects[path] = body
	b.contentType[path] = contentType
	return nil
}

func (b *fakeBlob) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	if b.err != nil {
		return b.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.objects[path] = buf.Bytes()
	b.multipart++
	return nil
}

func (b *fakeBlob) init() {
	if b.objects == nil {
		b.objects = map[string][]byte{}
		b.contentType = map[string]string{}
	}
}

// fakeAudit records audit events.
type fakeAudit struct {
	mu     sync.Mutex
	events []string
	detail []map[string]any
}

func (a *fakeAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	a.detail = append(a.detail, detail)
	return nil
}

// fakeLocks is an in-process domain.LockManager.
type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}
