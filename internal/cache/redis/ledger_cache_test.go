package redis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/serumledger/internal/domain"
)

func TestLedgerKeyIsVersioned(t *testing.T) {
	assert.Equal(t, "ledger:v1:A1", ledgerKey("A1"))
}

func TestLedgerEncodingKeepsEventIDs(t *testing.T) {
	dropped := int64(2)
	in := domain.Ledger{
		Account: "A1",
		Transactions: []domain.Transaction{{
			DateAndTime:          time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC),
			TransactionType:      domain.TransactionTypeTrade,
			SentQuantity:         decimal.RequireFromString("1"),
			SentCurrency:         "USDC",
			SendingSource:        domain.VenueSerum,
			ReceivedQuantity:     decimal.RequireFromString("0.002"),
			ReceivedCurrency:     "SOL",
			ReceivingDestination: domain.VenueSerum,
			Fee:                  decimal.RequireFromString("-0.001"),
			FeeCurrency:          "USDC",
			SourceEventID:        5,
		}},
		Dropped: &dropped,
	}

	data, err := encodeLedger(in)
	require.NoError(t, err)
	out, err := decodeLedger(data)
	require.NoError(t, err)

	require.Len(t, out.Transactions, 1)
	got := out.Transactions[0]
	assert.Equal(t, int64(5), got.SourceEventID)
	assert.True(t, got.Fee.Equal(in.Transactions[0].Fee))
	assert.True(t, got.ReceivedQuantity.Equal(in.Transactions[0].ReceivedQuantity))
	assert.Equal(t, "SOL", got.ReceivedCurrency)
	assert.Nil(t, got.ExchangeTransactionID)
	require.NotNil(t, out.Dropped)
	assert.Equal(t, int64(2), *out.Dropped)
}

func TestDecodeLedgerRejectsGarbage(t *testing.T) {
	_, err := decodeLedger([]byte("not json"))
	assert.Error(t, err)
}
