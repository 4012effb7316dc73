package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory is assigned to products created without one.
const DefaultCategory = "General"

// Product represents an item in a store's inventory
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url"`
	Barcode     string          `json:"barcode"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by,omitempty"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
	UpdatedBy   string          `json:"updated_by,omitempty"`
}

// UnmarshalJSON treats a document without an "active" field as active.
func (p *Product) UnmarshalJSON(b []byte) error {
	type alias Product
	a := alias{Active: true}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*p = Product(a)
	return nil
}

// Category represents a product category
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}
