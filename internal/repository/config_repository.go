package repository

import (
	"context"
	"errors"
	"fmt"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
)

// ConfigRepository defines the interface for store configuration access
type ConfigRepository interface {
	// Get returns the stored configuration, or a zero configuration when the
	// store has none yet.
	Get(ctx context.Context, storeID string) (*domain.StoreConfig, error)
	// Merge overlays fields onto the stored configuration.
	Merge(ctx context.Context, storeID string, fields map[string]any) (*domain.StoreConfig, error)
	Set(ctx context.Context, storeID string, cfg *domain.StoreConfig) error
}

type configRepository struct {
	store ledger.Store
}

// NewConfigRepository creates a new instance of ConfigRepository
func NewConfigRepository(store ledger.Store) ConfigRepository {
	return &configRepository{store: store}
}

func (r *configRepository) Get(ctx context.Context, storeID string) (*domain.StoreConfig, error) {
	path, err := ConfigPath(storeID)
	if err != nil {
		return nil, err
	}

	cfg := &domain.StoreConfig{}
	if _, err := ledger.GetJSON(ctx, r.store, path, cfg); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return &domain.StoreConfig{}, nil
		}
		return nil, fmt.Errorf("failed to get store config: %w", err)
	}

	return cfg, nil
}

func (r *configRepository) Merge(ctx context.Context, storeID string, fields map[string]any) (*domain.StoreConfig, error) {
	path, err := ConfigPath(storeID)
	if err != nil {
		return nil, err
	}

	merged, err := ledger.Update(ctx, r.store, path, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to update store config: %w", err)
	}

	cfg := &domain.StoreConfig{}
	if err := decodeObject(merged, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode store config: %w", err)
	}
	return cfg, nil
}

func (r *configRepository) Set(ctx context.Context, storeID string, cfg *domain.StoreConfig) error {
	path, err := ConfigPath(storeID)
	if err != nil {
		return err
	}

	if err := ledger.SetJSON(ctx, r.store, path, cfg); err != nil {
		return fmt.Errorf("failed to set store config: %w", err)
	}
	return nil
}
