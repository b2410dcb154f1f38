package domain

import "context"

// FillQuery selects the eligible fills of one account.
type FillQuery struct {
	Owner string
	Limit int
}

// FillStore is the Storage Provider for the ledger relations. Implementations
// must bind Owner as a query parameter and return rows ordered by load
// timestamp descending, then event id ascending.
type FillStore interface {
	// ListFills returns filled events in slots owned by q.Owner whose quote
	// and base currency metadata both resolve in the event's market scope.
	ListFills(ctx context.Context, q FillQuery) ([]FillRow, error)
	// CountUnresolved counts filled events of owner that lack quote or base
	// metadata in their market scope.
	CountUnresolved(ctx context.Context, owner string) (int64, error)
	Ping(ctx context.Context) error
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
