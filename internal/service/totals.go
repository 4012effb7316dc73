package service

import (
	"fmt"

	"velvet-pos/internal/domain"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity bounds the quantity of a single cart line.
const MaxLineQuantity = 1_000_000

var one = decimal.NewFromInt(1)

// Totals are the monetary fields of a transaction. Subtotal, TaxAmount,
// Discount and Total are rounded to cents; TaxRate is kept as configured.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxRate   decimal.Decimal
	TaxAmount decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
}

// ComputeTotals prices a cart. Tax is taken on the exact subtotal and
// rounded half up. The total is built from the rounded subtotal, tax and
// discount, so the stored fields always add up.
func ComputeTotals(items []domain.LineItem, taxRate, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	taxAmount := domain.RoundMoney(subtotal.Mul(taxRate))
	roundedSubtotal := domain.RoundMoney(subtotal)
	roundedDiscount := domain.RoundMoney(discount)

	return Totals{
		Subtotal:  roundedSubtotal,
		TaxRate:   taxRate,
		TaxAmount: taxAmount,
		Discount:  roundedDiscount,
		Total:     roundedSubtotal.Add(taxAmount).Sub(roundedDiscount),
	}
}

// ValidateTaxRate rejects rates outside [0, 1].
func ValidateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(one) {
		return fmt.Errorf("%w: %s", ErrInvalidTaxRate, rate)
	}
	return nil
}

// ValidateCart checks a cart before anything is read from the ledger.
func ValidateCart(cart *domain.Cart) error {
	if cart == nil || len(cart.Items) == 0 {
		return ErrEmptyCart
	}

	for i, item := range cart.Items {
		switch {
		case item.ProductID == "":
			return fmt.Errorf("%w: item %d has no product id", ErrInvalidCart, i)
		case item.Quantity <= 0:
			return fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidCart, i)
		case item.Quantity > MaxLineQuantity:
			return fmt.Errorf("%w: item %d quantity exceeds %d", ErrInvalidCart, i, MaxLineQuantity)
		case item.UnitPrice.IsNegative():
			return fmt.Errorf("%w: item %d price must not be negative", ErrInvalidCart, i)
		}
	}

	switch {
	case cart.Discount.IsNegative():
		return fmt.Errorf("%w: discount must not be negative", ErrInvalidCart)
	case cart.CashAmount.IsNegative(), cart.CardAmount.IsNegative():
		return fmt.Errorf("%w: payment amounts must not be negative", ErrInvalidCart)
	}

	return nil
}

// ChangeDue is the cash handed back, never negative.
func ChangeDue(cash, total decimal.Decimal) decimal.Decimal {
	change := domain.RoundMoney(cash.Sub(total))
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}
