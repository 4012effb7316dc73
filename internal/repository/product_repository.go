package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("product with this id already exists")
)

// ProductRepository defines the interface for inventory data access
type ProductRepository interface {
	Create(ctx context.Context, storeID string, product *domain.Product) error
	Update(ctx context.Context, storeID, id string, fields map[string]any) (*domain.Product, error)
	Delete(ctx context.Context, storeID, id string) error
	FindByID(ctx context.Context, storeID, id string) (*domain.Product, error)
	List(ctx context.Context, storeID string) ([]*domain.Product, error)
	Search(ctx context.Context, storeID, query string) ([]*domain.Product, error)
}

type productRepository struct {
	store ledger.Store
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(store ledger.Store) ProductRepository {
	return &productRepository{store: store}
}

// Create stores a new product, refusing to overwrite an existing id
func (r *productRepository) Create(ctx context.Context, storeID string, product *domain.Product) error {
	path, err := ProductPath(storeID, product.ID)
	if err != nil {
		return err
	}

	if err := ledger.CreateJSON(ctx, r.store, path, product); err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return ErrProductAlreadyExists
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update merges fields into an existing product. Fields the product type
// does not know about are kept as stored.
func (r *productRepository) Update(ctx context.Context, storeID, id string, fields map[string]any) (*domain.Product, error) {
	path, err := ProductPath(storeID, id)
	if err != nil {
		return nil, err
	}

	merged, err := ledger.Patch(ctx, r.store, path, fields)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	product := &domain.Product{}
	if err := decodeObject(merged, product); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	return product, nil
}

// Delete removes a product from the inventory
func (r *productRepository) Delete(ctx context.Context, storeID, id string) error {
	path, err := ProductPath(storeID, id)
	if err != nil {
		return err
	}

	if err := ledger.Delete(ctx, r.store, path); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, storeID, id string) (*domain.Product, error) {
	path, err := ProductPath(storeID, id)
	if err != nil {
		return nil, err
	}

	product := &domain.Product{}
	if _, err := ledger.GetJSON(ctx, r.store, path, product); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List returns every product of the store ordered by id
func (r *productRepository) List(ctx context.Context, storeID string) ([]*domain.Product, error) {
	parent, err := InventoryPath(storeID)
	if err != nil {
		return nil, err
	}

	products, err := ledger.ListJSON[*domain.Product](ctx, r.store, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return products, nil
}

// Search performs a case-insensitive match on name, SKU and barcode
func (r *productRepository) Search(ctx context.Context, storeID, query string) ([]*domain.Product, error) {
	products, err := r.List(ctx, storeID)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products, nil
	}

	matches := []*domain.Product{}
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.SKU), q) ||
			strings.Contains(strings.ToLower(p.Barcode), q) {
			matches = append(matches, p)
		}
	}

	return matches, nil
}

// decodeObject converts a merged document back into its typed form.
func decodeObject(obj map[string]any, v any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
