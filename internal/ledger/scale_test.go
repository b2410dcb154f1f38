package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleNative(t *testing.T) {
	tests := []struct {
		name     string
		native   string
		decimals int32
		want     string
	}{
		{"usdc one", "1000000", 6, "1"},
		{"sol dust", "2000", 9, "0.000002"},
		{"zero decimals", "42", 0, "42"},
		{"zero amount", "0", 9, "0"},
		{"above int64", "18446744073709551615", 9, "18446744073.709551615"},
		{"max quantity at 18 places", "1000000000000000000", 18, "1"},
		{"smallest unit", "1", 18, "0.000000000000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			native, err := decimal.NewFromString(tt.native)
			require.NoError(t, err)

			got := ScaleNative(native, tt.decimals)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestScaleNativeIsExactInverse(t *testing.T) {
	native := decimal.RequireFromString("999999999999999999")
	for decimals := int32(0); decimals <= 18; decimals++ {
		scaled := ScaleNative(native, decimals)
		assert.True(t, scaled.Shift(decimals).Equal(native), "decimals=%d", decimals)
	}
}
