package sales

import "github.com/shopspring/decimal"

// TotalsPolicy derives tax and discount amounts from an invoice subtotal.
type TotalsPolicy interface {
	Totals(subtotal decimal.Decimal) (tax, discount decimal.Decimal)
}

// LinearPolicy applies flat percentage rates to the subtotal, rounded to two
// decimal places. Zero rates make it a pass-through.
type LinearPolicy struct {
	taxRate      decimal.Decimal
	discountRate decimal.Decimal
}

// NewLinearPolicy builds a policy from percentage rates, e.g. 5 means 5%.
func NewLinearPolicy(taxPercent, discountPercent float64) LinearPolicy {
	hundred := decimal.NewFromInt(100)
	return LinearPolicy{
		taxRate:      decimal.NewFromFloat(taxPercent).Div(hundred),
		discountRate: decimal.NewFromFloat(discountPercent).Div(hundred),
	}
}

// Totals implements TotalsPolicy.
func (p LinearPolicy) Totals(subtotal decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	tax := subtotal.Mul(p.taxRate).Round(2)
	discount := subtotal.Mul(p.discountRate).Round(2)
	return tax, discount
}
