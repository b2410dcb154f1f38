package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeTrade = "trade"
	VenueSerum           = "serum"
)

// Transaction is a normalized ledger line reconstructed from one fill event.
type Transaction struct {
	DateAndTime               time.Time       `json:"date_and_time"`
	TransactionType           string          `json:"transaction_type"`
	SentQuantity              decimal.Decimal `json:"sent_quantity"`
	SentCurrency              string          `json:"sent_currency"`
	SendingSource             string          `json:"sending_source"`
	ReceivedQuantity          decimal.Decimal `json:"received_quantity"`
	ReceivedCurrency          string          `json:"received_currency"`
	ReceivingDestination      string          `json:"receiving_destination"`
	Fee                       decimal.Decimal `json:"fee"`
	FeeCurrency               string          `json:"fee_currency"`
	ExchangeTransactionID     *string         `json:"exchange_transaction_id"`
	BlockchainTransactionHash *string         `json:"blockchain_transaction_hash"`

	// SourceEventID is the fill event the line was built from.
	SourceEventID int64 `json:"-"`
}

// Ledger is the result of one reconstruction.
type Ledger struct {
	Account      string
	Transactions []Transaction
	// Dropped counts filled events of the account that were excluded for
	// missing currency metadata. It is nil when counting is disabled.
	Dropped *int64
}
