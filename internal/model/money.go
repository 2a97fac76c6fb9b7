package model

import "github.com/shopspring/decimal"

// DefaultCurrency is used when a request does not name one.
const DefaultCurrency = "BRL"

// Round2 rounds a monetary amount to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
