package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"velvet-pos/internal/clock"
	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger/memory"
	"velvet-pos/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var manager = domain.Actor{UserID: "mgr_1", StoreID: saleStoreID, Role: domain.RoleManager}

func newTestInventoryService() (InventoryService, *clock.FakeClock) {
	store := memory.New()
	clk := clock.NewFakeClock(saleTime)
	return NewInventoryService(repository.NewProductRepository(store), repository.NewCategoryRepository(store), clk, zap.NewNop()), clk
}

func TestCreateProductDefaults(t *testing.T) {
	svc, _ := newTestInventoryService()
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, manager, NewProduct{
		Name:  "Matte Ruby Lipstick",
		SKU:   "LIP-001",
		Price: decimal.RequireFromString("24.99"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, product.ID)
	assert.Equal(t, domain.DefaultCategory, product.Category)
	assert.Equal(t, 0, product.Stock)
	assert.True(t, product.Active)
	assert.Equal(t, "mgr_1", product.CreatedBy)
	assert.True(t, product.CreatedAt.Equal(saleTime))

	stored, err := svc.GetProduct(ctx, saleStoreID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Name, stored.Name)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestInventoryService()
	ctx := context.Background()

	inputs := []NewProduct{
		{SKU: "A-1", Price: decimal.NewFromInt(1)},
		{Name: "No sku", Price: decimal.NewFromInt(1)},
		{Name: "Negative", SKU: "A-1", Price: decimal.NewFromInt(-1)},
		{Name: "Negative stock", SKU: "A-1", Price: decimal.NewFromInt(1), Stock: -3},
	}
	for _, in := range inputs {
		_, err := svc.CreateProduct(ctx, manager, in)
		assert.ErrorIs(t, err, ErrInvalidProduct, "%+v", in)
	}

	_, err := svc.CreateProduct(ctx, manager, NewProduct{ID: "prod_1", Name: "A", SKU: "A-1"})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, manager, NewProduct{ID: "prod_1", Name: "B", SKU: "B-1"})
	assert.ErrorIs(t, err, repository.ErrProductAlreadyExists)
}

func TestUpdateProductStampsEditor(t *testing.T) {
	svc, clk := newTestInventoryService()
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, manager, NewProduct{ID: "prod_1", Name: "A", SKU: "A-1", Price: decimal.NewFromInt(5), Stock: 4})
	require.NoError(t, err)

	clk.Advance(time.Hour)
	editor := domain.Actor{UserID: "owner_9", StoreID: saleStoreID, Role: domain.RoleOwner}
	updated, err := svc.UpdateProduct(ctx, editor, product.ID, map[string]any{
		"stock":      json.Number("12"),
		"price":      json.Number("6.50"),
		"id":         "hijack",
		"created_by": "someone",
	})
	require.NoError(t, err)

	assert.Equal(t, "prod_1", updated.ID)
	assert.Equal(t, 12, updated.Stock)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("6.5")))
	assert.Equal(t, "mgr_1", updated.CreatedBy)
	assert.Equal(t, "owner_9", updated.UpdatedBy)
	require.NotNil(t, updated.UpdatedAt)
	assert.True(t, updated.UpdatedAt.Equal(saleTime.Add(time.Hour)))
}

func TestUpdateProductValidation(t *testing.T) {
	svc, _ := newTestInventoryService()
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, manager, NewProduct{ID: "prod_1", Name: "A", SKU: "A-1"})
	require.NoError(t, err)

	for _, fields := range []map[string]any{
		{"stock": json.Number("-1")},
		{"stock": json.Number("1.5")},
		{"stock": "lots"},
		{"price": json.Number("-2")},
		{"active": "yes"},
		{"name": ""},
	} {
		_, err := svc.UpdateProduct(ctx, manager, "prod_1", fields)
		assert.ErrorIs(t, err, ErrInvalidProduct, "%v", fields)
	}

	_, err = svc.UpdateProduct(ctx, manager, "missing", map[string]any{"stock": 1})
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestListAndDeleteProducts(t *testing.T) {
	svc, _ := newTestInventoryService()
	ctx := context.Background()

	for _, p := range []NewProduct{
		{ID: "prod_1", Name: "Matte Ruby Lipstick", SKU: "LIP-001"},
		{ID: "prod_2", Name: "Silk Foundation", SKU: "FND-001"},
	} {
		_, err := svc.CreateProduct(ctx, manager, p)
		require.NoError(t, err)
	}

	all, err := svc.ListProducts(ctx, saleStoreID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	matches, err := svc.ListProducts(ctx, saleStoreID, "lip")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "prod_1", matches[0].ID)

	require.NoError(t, svc.DeleteProduct(ctx, manager, "prod_1"))
	assert.ErrorIs(t, svc.DeleteProduct(ctx, manager, "prod_1"), repository.ErrProductNotFound)
}

func TestCategories(t *testing.T) {
	svc, _ := newTestInventoryService()
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, saleStoreID, &domain.Category{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	created, err := svc.CreateCategory(ctx, saleStoreID, &domain.Category{Name: "Skincare", SortOrder: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = svc.CreateCategory(ctx, saleStoreID, &domain.Category{ID: "cat_1", Name: "Lipstick", SortOrder: 1})
	require.NoError(t, err)

	categories, err := svc.ListCategories(ctx, saleStoreID)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Lipstick", categories[0].Name)
	assert.Equal(t, "Skincare", categories[1].Name)
}
