// Package money holds the fixed-point rounding rules shared by all pricing
// code. Amounts are shopspring decimals; binary floating point is never used
// for currency math.
package money

import "github.com/shopspring/decimal"

const (
	// CurrencyScale is the number of fractional digits kept for currency
	// amounts.
	CurrencyScale int32 = 2
	// FractionScale is the number of fractional digits kept for intermediate
	// percentage fractions (e.g. a discount percent divided by 100).
	FractionScale int32 = 4
)

// Round rounds d to the given number of fractional digits using
// round-half-to-even.
func Round(d decimal.Decimal, scale int32) decimal.Decimal {
	return d.RoundBank(scale)
}

// Currency rounds d to the currency scale.
func Currency(d decimal.Decimal) decimal.Decimal {
	return Round(d, CurrencyScale)
}

// Fraction rounds d to the fraction scale.
func Fraction(d decimal.Decimal) decimal.Decimal {
	return Round(d, FractionScale)
}
