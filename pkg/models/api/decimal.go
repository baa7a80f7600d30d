package api

import "github.com/shopspring/decimal"

// Decimal is an exact quantity rendered as a bare JSON number. Reading it back
// yields the same digits, so persisted reports keep reconciling.
type Decimal struct {
	decimal.Decimal
}

func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{Decimal: d}
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.Decimal.String()), nil
}
