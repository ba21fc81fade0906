package converter

import (
	"github.com/shopspring/decimal"
)

// Amounts are stored as integer cents. Conversion goes through decimal so
// stakes like 19.99 survive the float boundary exactly.

func AmountToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func CentsToAmount(cents int64) float64 {
	f, _ := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).Float64()

	return f
}

func CentsToString(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// Payout is floor(stake * multiplier) in cents. Rounding down keeps the house
// side of sub-cent remainders.
func Payout(stakeCents int64, multiplier float64) int64 {
	return decimal.NewFromInt(stakeCents).
		Mul(decimal.NewFromFloat(multiplier)).
		Floor().
		IntPart()
}
