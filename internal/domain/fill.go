package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ownership links an openOrders slot to the account that controls it.
type Ownership struct {
	OpenOrders string
	Owner      string
}

// MarketScope identifies a trading venue: a market address under a program.
type MarketScope struct {
	MarketAddress string
	ProgramID     string
}

// FillEvent is a single row of the append-only event log as written by the
// events parser. Native amounts are integers held in decimal form so values
// above the int64 range survive the round trip.
type FillEvent struct {
	ID                     int64
	LoadTimestamp          time.Time
	OpenOrders             string
	OpenOrdersSlot         int
	FeeTier                int
	Bid                    bool
	Maker                  bool
	Fill                   bool
	Out                    bool
	NativeQuantityPaid     decimal.Decimal
	NativeQuantityReleased decimal.Decimal
	NativeFeeOrRebate      decimal.Decimal
	QuoteCurrency          string
	BaseCurrency           string
	OrderID                string
	ClientOrderID          string
	MarketScope
}

// CurrencyMeta is the decimal precision of a currency within one market scope.
type CurrencyMeta struct {
	Currency     string
	MintDecimals int32
	MarketScope
}

// FillRow is a fill event joined with the currency metadata of both sides of
// its market. Quote or Base is nil when no metadata row matched.
type FillRow struct {
	Event FillEvent
	Quote *CurrencyMeta
	Base  *CurrencyMeta
}
