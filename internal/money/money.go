// Package money holds the fixed-point arithmetic rules shared by the
// ledger and loan packages. Monetary amounts are stored at scale 2 and
// rounded half-up at settlement boundaries; rate math runs at scale 10
// before final rounding.
package money

import "github.com/shopspring/decimal"

const (
	// MinorScale is the storage scale for currency amounts.
	MinorScale = 2
	// RateScale is the intermediate scale for interest rate math.
	RateScale = 10
)

var (
	hundred       = decimal.NewFromInt(100)
	twelve        = decimal.NewFromInt(12)
	twelveHundred = decimal.NewFromInt(1200)
)

// FromMajor builds an amount from whole currency units.
func FromMajor(units int64) decimal.Decimal {
	return decimal.NewFromInt(units)
}

// RoundMinor rounds to the currency's minor unit, half-up.
// decimal.Round is half-away-from-zero, which coincides with half-up for
// the non-negative amounts the core deals in.
func RoundMinor(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorScale)
}

// MonthlyRate converts an annual percentage rate to a monthly fraction
// at RateScale precision (annualPercent / 1200).
func MonthlyRate(annualPercent decimal.Decimal) decimal.Decimal {
	return annualPercent.DivRound(twelveHundred, RateScale)
}

// MonthlyInterest computes one month of simple interest on a balance at
// the given annual percentage rate, rounded to the minor unit.
func MonthlyInterest(balance, annualPercent decimal.Decimal) decimal.Decimal {
	return RoundMinor(balance.Mul(annualPercent).Div(hundred).Div(twelve))
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}
