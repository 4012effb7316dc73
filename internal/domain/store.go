package domain

import (
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

// DefaultLoyaltyTier is assigned to new customers.
const DefaultLoyaltyTier = "Bronze"

// StoreConfig is the per-store settings document. TaxRate is invalid when
// the store never set one.
type StoreConfig struct {
	Name           string              `json:"name"`
	Currency       string              `json:"currency"`
	CurrencySymbol string              `json:"currency_symbol"`
	TaxRate        decimal.NullDecimal `json:"tax_rate"`
	ThemeColor     string              `json:"theme_color"`
	LogoURL        string              `json:"logo_url"`
	Timezone       string              `json:"timezone"`
}

// Location resolves Timezone, falling back to UTC when unset or unknown.
func (c *StoreConfig) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Customer represents a store's customer record
type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Points         int             `json:"points"`
	LoyaltyTier    string          `json:"loyalty_tier"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"created_at"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
}
