// Package money keeps every monetary amount in integer minor units (cents).
// Decimal inputs are parsed and rounded to two places exactly once, at the
// boundary, so binary floats never reach the ledger.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
)

// Cents is a monetary amount in minor units.
type Cents = int64

var hundred = decimal.NewFromInt(100)

// ParseCents converts a decimal string (e.g. "19.99") into cents, rounding
// half-up to two places.
func ParseCents(value string) (Cents, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid amount %q", value))
	}
	return d.Round(2).Mul(hundred).IntPart(), nil
}

// FromDecimal converts a decimal amount into cents, rounding to two places.
func FromDecimal(d decimal.Decimal) Cents {
	return d.Round(2).Mul(hundred).IntPart()
}

// ToDecimal converts cents back into a two-place decimal.
func ToDecimal(cents Cents) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}

// Format renders cents as a fixed two-place decimal string.
func Format(cents Cents) string {
	return ToDecimal(cents).StringFixed(2)
}

// DiscountedUnitPrice applies a whole-number percentage discount to a unit
// price and rounds the result to a whole cent.
func DiscountedUnitPrice(priceCents Cents, discountPercent int) Cents {
	if discountPercent <= 0 {
		return priceCents
	}
	if discountPercent >= 100 {
		return 0
	}
	price := decimal.NewFromInt(priceCents)
	factor := decimal.NewFromInt(int64(100 - discountPercent)).Div(hundred)
	return price.Mul(factor).Round(0).IntPart()
}

// LineTotal multiplies a unit price by a quantity.
func LineTotal(unitPriceCents Cents, quantity int) Cents {
	return unitPriceCents * int64(quantity)
}

// NetAmount subtracts the fee components from a gross amount.
func NetAmount(amountCents, platformFee, paymentFee, taxFee Cents) Cents {
	return amountCents - platformFee - paymentFee - taxFee
}
