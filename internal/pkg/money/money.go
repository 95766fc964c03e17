// Package money keeps balance and PnL arithmetic in decimal so repeated
// debits and credits do not drift.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

func FromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return Zero
	}
	return decimal.NewFromFloat(val)
}

func ToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// Ratio returns num/den rounded to 6 places, or 0 when den is zero.
func Ratio(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return ToFloat(num.DivRound(den, 6))
}
