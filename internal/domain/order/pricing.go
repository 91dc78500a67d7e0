package order

import (
	"github.com/shopspring/decimal"

	"github.com/valmera/orderdesk/internal/domain/catalog"
	"github.com/valmera/orderdesk/internal/domain/money"
)

var hundred = decimal.NewFromInt(100)

// GrossAmount returns the undiscounted amount a line item contributes to the
// order: unit price times quantity, at currency scale.
func GrossAmount(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return money.Currency(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// NetAmount returns the discount-adjusted amount for a line item. The order
// discount applies to product-kind items only; service-kind items are always
// charged at gross. An absent discount percent counts as zero.
//
// The percent is first reduced to a fraction at scale 4, then the discount
// amount and the final net are each rounded at currency scale.
func NetAmount(gross decimal.Decimal, kind catalog.Kind, discountPercent decimal.NullDecimal) decimal.Decimal {
	if kind != catalog.KindProduct {
		return gross
	}

	percent := decimal.Zero
	if discountPercent.Valid {
		percent = discountPercent.Decimal
	}

	fraction := money.Fraction(percent.Div(hundred))
	discount := money.Currency(gross.Mul(fraction))
	return money.Currency(gross.Sub(discount))
}
