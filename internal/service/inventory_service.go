package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"velvet-pos/internal/clock"
	"velvet-pos/internal/domain"
	"velvet-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidProduct = errors.New("invalid product")

// immutableProductFields are ignored in updates.
var immutableProductFields = []string{"id", "created_at", "created_by", "updated_at", "updated_by"}

// NewProduct holds the attributes of a product being added to inventory
type NewProduct struct {
	ID          string
	Name        string
	SKU         string
	Price       decimal.Decimal
	Category    string
	Description string
	Stock       int
	ImageURL    string
	Barcode     string
}

// InventoryService manages products and categories
type InventoryService interface {
	ListProducts(ctx context.Context, storeID, query string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, storeID, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, actor domain.Actor, input NewProduct) (*domain.Product, error)
	UpdateProduct(ctx context.Context, actor domain.Actor, id string, fields map[string]any) (*domain.Product, error)
	DeleteProduct(ctx context.Context, actor domain.Actor, id string) error
	ListCategories(ctx context.Context, storeID string) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, storeID string, category *domain.Category) (*domain.Category, error)
}

type inventoryService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	clock      clock.Clock
	logger     *zap.Logger
}

// NewInventoryService creates a new instance of InventoryService
func NewInventoryService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	clk clock.Clock,
	logger *zap.Logger,
) InventoryService {
	return &inventoryService{
		products:   products,
		categories: categories,
		clock:      clk,
		logger:     logger.Named("inventory"),
	}
}

// ListProducts returns the store's products, filtered by query when given
func (s *inventoryService) ListProducts(ctx context.Context, storeID, query string) ([]*domain.Product, error) {
	if strings.TrimSpace(query) != "" {
		return s.products.Search(ctx, storeID, query)
	}
	return s.products.List(ctx, storeID)
}

func (s *inventoryService) GetProduct(ctx context.Context, storeID, id string) (*domain.Product, error) {
	return s.products.FindByID(ctx, storeID, id)
}

// CreateProduct adds a product. New products are active; category defaults
// to General.
func (s *inventoryService) CreateProduct(ctx context.Context, actor domain.Actor, input NewProduct) (*domain.Product, error) {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case strings.TrimSpace(input.SKU) == "":
		return nil, fmt.Errorf("%w: sku is required", ErrInvalidProduct)
	case input.Price.IsNegative():
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case input.Stock < 0:
		return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}

	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}
	category := input.Category
	if category == "" {
		category = domain.DefaultCategory
	}

	product := &domain.Product{
		ID:          id,
		Name:        input.Name,
		SKU:         input.SKU,
		Price:       input.Price,
		Category:    category,
		Description: input.Description,
		Stock:       input.Stock,
		ImageURL:    input.ImageURL,
		Barcode:     input.Barcode,
		Active:      true,
		CreatedAt:   s.clock.Now().UTC(),
		CreatedBy:   actor.UserID,
	}

	if err := s.products.Create(ctx, actor.StoreID, product); err != nil {
		return nil, err
	}

	s.logger.Info("Added product",
		zap.String("store_id", actor.StoreID),
		zap.String("product_id", id),
		zap.String("name", product.Name),
	)

	return product, nil
}

// UpdateProduct merges fields into the stored product and stamps the editor.
// Unknown fields are stored as given.
func (s *inventoryService) UpdateProduct(ctx context.Context, actor domain.Actor, id string, fields map[string]any) (*domain.Product, error) {
	update, err := normalizeProductFields(fields)
	if err != nil {
		return nil, err
	}

	update["updated_at"] = s.clock.Now().UTC()
	update["updated_by"] = actor.UserID

	product, err := s.products.Update(ctx, actor.StoreID, id, update)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Updated product",
		zap.String("store_id", actor.StoreID),
		zap.String("product_id", id),
	)

	return product, nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.products.Delete(ctx, actor.StoreID, id); err != nil {
		return err
	}

	s.logger.Info("Deleted product",
		zap.String("store_id", actor.StoreID),
		zap.String("product_id", id),
	)
	return nil
}

func (s *inventoryService) ListCategories(ctx context.Context, storeID string) ([]*domain.Category, error) {
	return s.categories.List(ctx, storeID)
}

func (s *inventoryService) CreateCategory(ctx context.Context, storeID string, category *domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrInvalidProduct)
	}
	if category.ID == "" {
		category.ID = "cat_" + uuid.New().String()[:8]
	}

	if err := s.categories.Create(ctx, storeID, category); err != nil {
		return nil, err
	}
	return category, nil
}

// normalizeProductFields checks the typed fields of an update and converts
// them to their stored representation.
func normalizeProductFields(fields map[string]any) (map[string]any, error) {
	update := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		update[k] = v
	}
	for _, k := range immutableProductFields {
		delete(update, k)
	}

	if v, ok := update["price"]; ok {
		price, err := decimal.NewFromString(fmt.Sprint(v))
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("%w: price must be a non-negative number", ErrInvalidProduct)
		}
		update["price"] = price
	}

	if v, ok := update["stock"]; ok {
		stock, err := decimal.NewFromString(fmt.Sprint(v))
		if err != nil || !stock.IsInteger() || stock.IsNegative() {
			return nil, fmt.Errorf("%w: stock must be a non-negative integer", ErrInvalidProduct)
		}
		update["stock"] = stock.IntPart()
	}

	if v, ok := update["active"]; ok {
		if _, isBool := v.(bool); !isBool {
			return nil, fmt.Errorf("%w: active must be a boolean", ErrInvalidProduct)
		}
	}

	for _, k := range []string{"name", "sku"} {
		if v, ok := update[k]; ok {
			if str, isString := v.(string); !isString || strings.TrimSpace(str) == "" {
				return nil, fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidProduct, k)
			}
		}
	}

	return update, nil
}
