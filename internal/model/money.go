package model

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits stored by the NUMERIC(18, 2) money columns.
const AmountScale = 2

// FitsAmountScale reports whether d can be stored without rounding.
func FitsAmountScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(AmountScale))
}
