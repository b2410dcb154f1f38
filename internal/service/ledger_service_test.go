package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/serumledger/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetLedger(t *testing.T) {
	fills := &fakeFills{rows: map[string][]domain.FillRow{
		"A1": {testRow(1, true, false), testRow(2, false, true)},
	}}
	svc := NewLedgerService(fills, nil, LedgerConfig{}, discardLogger())

	l, err := svc.GetLedger(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", l.Account)
	require.Len(t, l.Transactions, 2)
	assert.Equal(t, int64(2), l.Transactions[0].SourceEventID)
	assert.Equal(t, "-0.001", l.Transactions[0].Fee.String())
	assert.Nil(t, l.Dropped)
}

func TestGetLedgerUnknownAccount(t *testing.T) {
	svc := NewLedgerService(&fakeFills{}, nil, LedgerConfig{}, discardLogger())

	l, err := svc.GetLedger(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, l.Transactions)
}

func TestGetLedgerCountsDropped(t *testing.T) {
	fills := &fakeFills{unresolved: 3}
	svc := NewLedgerService(fills, nil, LedgerConfig{CountDropped: true}, discardLogger())

	l, err := svc.GetLedger(context.Background(), "A1")
	require.NoError(t, err)
	require.NotNil(t, l.Dropped)
	assert.Equal(t, int64(3), *l.Dropped)
}

func TestGetLedgerCountFailureFailsRequest(t *testing.T) {
	fills := &fakeFills{countErr: errors.Join(domain.ErrStorageUnavailable, errors.New("reset"))}
	svc := NewLedgerService(fills, nil, LedgerConfig{CountDropped: true}, discardLogger())

	_, err := svc.GetLedger(context.Background(), "A1")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestGetLedgerUsesCache(t *testing.T) {
	fills := &fakeFills{rows: map[string][]domain.FillRow{"A1": {testRow(1, true, false)}}}
	cache := &fakeCache{}
	svc := NewLedgerService(fills, cache, LedgerConfig{}, discardLogger())

	first, err := svc.GetLedger(context.Background(), "A1")
	require.NoError(t, err)
	second, err := svc.GetLedger(context.Background(), "A1")
	require.NoError(t, err)

	assert.Equal(t, 1, fills.calls)
	assert.Equal(t, first, second)
}

func TestGetLedgerCacheErrorFallsBackToStore(t *testing.T) {
	fills := &fakeFills{rows: map[string][]domain.FillRow{"A1": {testRow(1, true, false)}}}
	cache := &fakeCache{getErr: errors.New("redis: connection refused")}
	svc := NewLedgerService(fills, cache, LedgerConfig{}, discardLogger())

	l, err := svc.GetLedger(context.Background(), "A1")
	require.NoError(t, err)
	assert.Len(t, l.Transactions, 1)
	assert.Equal(t, 1, fills.calls)
}

func TestGetLedgerTimeoutIsStorageUnavailable(t *testing.T) {
	fills := &fakeFills{block: true}
	cache := &fakeCache{}
	svc := NewLedgerService(fills, cache, LedgerConfig{QueryTimeout: 10 * time.Millisecond}, discardLogger())

	_, err := svc.GetLedger(context.Background(), "A1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, cache.entries)
}

func TestGetLedgerMalformedRelation(t *testing.T) {
	fills := &fakeFills{listErr: errors.Join(domain.ErrMalformedRelation, errors.New(`column "fill" does not exist`))}
	svc := NewLedgerService(fills, nil, LedgerConfig{}, discardLogger())

	_, err := svc.GetLedger(context.Background(), "A1")
	assert.ErrorIs(t, err, domain.ErrMalformedRelation)
}
