package domain

import "github.com/shopspring/decimal"

func init() {
	// Monetary values travel as JSON numbers, matching what clients send.
	decimal.MarshalJSONWithoutQuotes = true
}

// RoundMoney rounds half away from zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
