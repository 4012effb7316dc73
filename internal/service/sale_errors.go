package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart        = errors.New("no items in transaction")
	ErrInvalidCart      = errors.New("invalid cart")
	ErrNegativeTotal    = errors.New("transaction total would be negative")
	ErrProductInactive  = errors.New("product is inactive")
	ErrInvalidTaxRate   = errors.New("store tax rate must be between 0 and 1")
	ErrStoreUnreachable = errors.New("ledger store unreachable")
	ErrInvalidConfig    = errors.New("invalid store configuration")
)

// InsufficientStockError reports a product that cannot cover the requested
// quantity. A product missing from the inventory has Available 0.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s. Available: %d, requested: %d", name, e.Available, e.Requested)
}
