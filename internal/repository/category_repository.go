package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
)

var (
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryAlreadyExists = errors.New("category with this id already exists")
)

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(ctx context.Context, storeID string, category *domain.Category) error
	List(ctx context.Context, storeID string) ([]*domain.Category, error)
	FindByID(ctx context.Context, storeID, id string) (*domain.Category, error)
}

type categoryRepository struct {
	store ledger.Store
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(store ledger.Store) CategoryRepository {
	return &categoryRepository{store: store}
}

func (r *categoryRepository) Create(ctx context.Context, storeID string, category *domain.Category) error {
	path, err := storePath(storeID, categoriesColl, category.ID)
	if err != nil {
		return err
	}

	if err := ledger.CreateJSON(ctx, r.store, path, category); err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return ErrCategoryAlreadyExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// List returns the store's categories by sort order, then name
func (r *categoryRepository) List(ctx context.Context, storeID string) ([]*domain.Category, error) {
	parent, err := storePath(storeID, categoriesColl)
	if err != nil {
		return nil, err
	}

	categories, err := ledger.ListJSON[*domain.Category](ctx, r.store, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].SortOrder != categories[j].SortOrder {
			return categories[i].SortOrder < categories[j].SortOrder
		}
		return categories[i].Name < categories[j].Name
	})

	return categories, nil
}

func (r *categoryRepository) FindByID(ctx context.Context, storeID, id string) (*domain.Category, error) {
	path, err := storePath(storeID, categoriesColl, id)
	if err != nil {
		return nil, err
	}

	category := &domain.Category{}
	if _, err := ledger.GetJSON(ctx, r.store, path, category); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}

	return category, nil
}
