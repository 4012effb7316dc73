package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product line of a cart. UnitPrice is taken as submitted
// by the register and is not re-derived from the product.
type LineItem struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Cart is a sale request as received from the register.
type Cart struct {
	Items          []LineItem      `json:"items"`
	Discount       decimal.Decimal `json:"discount"`
	PaymentMethod  string          `json:"payment_method"`
	CashAmount     decimal.Decimal `json:"cash_amount"`
	CardAmount     decimal.Decimal `json:"card_amount"`
	StaffName      string          `json:"staff_name"`
	CustomerID     string          `json:"customer_id"`
	Notes          string          `json:"notes"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// Actor identifies who rang up a sale.
type Actor struct {
	UserID  string
	StoreID string
	Role    string
}

// Transaction is an immutable record of a completed sale
type Transaction struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Date           string          `json:"date"`
	Time           string          `json:"time"`
	StaffID        string          `json:"staff_id"`
	StaffName      string          `json:"staff_name"`
	CustomerID     string          `json:"customer_id"`
	Items          []LineItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  string          `json:"payment_method"`
	CashAmount     decimal.Decimal `json:"cash_amount"`
	CardAmount     decimal.Decimal `json:"card_amount"`
	Notes          string          `json:"notes"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// DailySummary aggregates the transactions of one store on one date.
type DailySummary struct {
	Date             string          `json:"date"`
	TransactionCount int             `json:"transaction_count"`
	TotalSales       decimal.Decimal `json:"total_sales"`
}

// IdempotencyMarker records which transaction a client key produced.
type IdempotencyMarker struct {
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}
