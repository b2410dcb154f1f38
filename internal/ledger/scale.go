package ledger

import "github.com/shopspring/decimal"

// ScaleNative converts an amount in native integer units to a decimal amount
// by moving the decimal point left by decimals places. The conversion is exact.
func ScaleNative(native decimal.Decimal, decimals int32) decimal.Decimal {
	return native.Shift(-decimals)
}
