package service

import (
	"context"
	"fmt"
	"time"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Defaults shown for settings a store has not configured.
const (
	DefaultStoreName      = "Velvet Beauty Boutique"
	DefaultCurrency       = "USD"
	DefaultCurrencySymbol = "$"
	DefaultThemeColor     = "#D4AF37"
	DefaultTimezone       = "UTC"
)

// StoreConfigService reads and updates store settings
type StoreConfigService interface {
	GetConfig(ctx context.Context, storeID string) (*domain.StoreConfig, error)
	UpdateConfig(ctx context.Context, storeID string, fields map[string]any) (*domain.StoreConfig, error)
}

type storeConfigService struct {
	configs        repository.ConfigRepository
	defaultTaxRate decimal.Decimal
	logger         *zap.Logger
}

// NewStoreConfigService creates a new instance of StoreConfigService
func NewStoreConfigService(configs repository.ConfigRepository, defaultTaxRate decimal.Decimal, logger *zap.Logger) StoreConfigService {
	return &storeConfigService{
		configs:        configs,
		defaultTaxRate: defaultTaxRate,
		logger:         logger.Named("store_config"),
	}
}

// GetConfig returns the stored settings with defaults filled in
func (s *storeConfigService) GetConfig(ctx context.Context, storeID string) (*domain.StoreConfig, error) {
	cfg, err := s.configs.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return s.withDefaults(cfg), nil
}

// UpdateConfig merges fields into the stored settings. A tax_rate outside
// [0, 1] or an unknown timezone is rejected before anything is written.
func (s *storeConfigService) UpdateConfig(ctx context.Context, storeID string, fields map[string]any) (*domain.StoreConfig, error) {
	update := make(map[string]any, len(fields))
	for k, v := range fields {
		update[k] = v
	}

	if v, ok := update["tax_rate"]; ok && v != nil {
		rate, err := decimal.NewFromString(fmt.Sprint(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTaxRate, v)
		}
		if err := ValidateTaxRate(rate); err != nil {
			return nil, err
		}
		update["tax_rate"] = rate
	}

	if v, ok := update["timezone"]; ok {
		tz, isString := v.(string)
		if !isString {
			return nil, fmt.Errorf("%w: timezone must be a string", ErrInvalidConfig)
		}
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, tz)
		}
	}

	cfg, err := s.configs.Merge(ctx, storeID, update)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Updated store configuration", zap.String("store_id", storeID))
	return s.withDefaults(cfg), nil
}

func (s *storeConfigService) withDefaults(cfg *domain.StoreConfig) *domain.StoreConfig {
	out := *cfg
	if out.Name == "" {
		out.Name = DefaultStoreName
	}
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	if out.CurrencySymbol == "" {
		out.CurrencySymbol = DefaultCurrencySymbol
	}
	if !out.TaxRate.Valid {
		out.TaxRate = decimal.NewNullDecimal(s.defaultTaxRate)
	}
	if out.ThemeColor == "" {
		out.ThemeColor = DefaultThemeColor
	}
	if out.Timezone == "" {
		out.Timezone = DefaultTimezone
	}
	return &out
}
