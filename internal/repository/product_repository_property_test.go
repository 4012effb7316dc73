package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
	"velvet-pos/internal/ledger/memory"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

const testStoreID = "default"

// Feature: velvet-pos, Property 10: Product creation preserves attributes
// Validates: Requirements 4.5
func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	productRepo := NewProductRepository(memory.New())

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, sku string, description string, priceCents int64, stock int) bool {
			ctx := context.Background()

			product := &domain.Product{
				ID:          uuid.New().String(),
				Name:        name,
				SKU:         sku,
				Description: description,
				Price:       decimal.New(priceCents, -2),
				Category:    domain.DefaultCategory,
				Stock:       stock,
				Active:      true,
				CreatedAt:   time.Now().UTC(),
			}

			if err := productRepo.Create(ctx, testStoreID, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, testStoreID, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.ID != product.ID || retrieved.Name != product.Name || retrieved.SKU != product.SKU {
				t.Logf("FAIL: identity mismatch. Expected %+v, got %+v", product, retrieved)
				return false
			}

			if retrieved.Description != product.Description {
				t.Logf("FAIL: Description mismatch. Expected %s, got %s", product.Description, retrieved.Description)
				return false
			}

			// Decimal prices round-trip exactly.
			if !retrieved.Price.Equal(product.Price) {
				t.Logf("FAIL: Price mismatch. Expected %s, got %s", product.Price, retrieved.Price)
				return false
			}

			if retrieved.Stock != product.Stock || !retrieved.Active {
				t.Logf("FAIL: Stock/active mismatch. Expected %d, got %d (active=%v)", product.Stock, retrieved.Stock, retrieved.Active)
				return false
			}

			if !retrieved.CreatedAt.Equal(product.CreatedAt) {
				t.Logf("FAIL: CreatedAt mismatch")
				return false
			}

			return true
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`),       // name
		gen.RegexMatch(`[A-Z]{3}-[0-9]{3}`),        // sku
		gen.RegexMatch(`[A-Za-z0-9 .,!?]{10,200}`), // description
		gen.Int64Range(0, 999999),                  // price in cents
		gen.IntRange(0, 1000),                      // stock (non-negative)
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: velvet-pos, Property 14: Product updates are reflected
// Validates: Requirements 4.5
func TestProperty_ProductUpdatesAreReflected(t *testing.T) {
	store := memory.New()
	productRepo := NewProductRepository(store)

	properties := gopter.NewProperties(nil)

	properties.Property("updating a product shows the new values and keeps other fields", prop.ForAll(
		func(name1 string, name2 string, price1 int64, price2 int64, stock1 int, stock2 int) bool {
			ctx := context.Background()

			product := &domain.Product{
				ID:        uuid.New().String(),
				Name:      name1,
				SKU:       "LIP-001",
				Price:     decimal.New(price1, -2),
				Category:  "Lipstick",
				Stock:     stock1,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			}
			if err := productRepo.Create(ctx, testStoreID, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			updated, err := productRepo.Update(ctx, testStoreID, product.ID, map[string]any{
				"name":  name2,
				"price": decimal.New(price2, -2),
				"stock": stock2,
			})
			if err != nil {
				t.Logf("FAIL: Failed to update product: %v", err)
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, testStoreID, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			for _, p := range []*domain.Product{updated, retrieved} {
				if p.Name != name2 || p.Stock != stock2 || !p.Price.Equal(decimal.New(price2, -2)) {
					t.Logf("FAIL: update not reflected: %+v", p)
					return false
				}
				if p.SKU != "LIP-001" || p.Category != "Lipstick" {
					t.Logf("FAIL: untouched fields changed: %+v", p)
					return false
				}
			}

			return true
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`), // name1
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`), // name2
		gen.Int64Range(0, 999999),            // price1
		gen.Int64Range(0, 999999),            // price2
		gen.IntRange(0, 1000),                // stock1
		gen.IntRange(0, 1000),                // stock2
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: velvet-pos, Property 16: Product deletion removes from inventory
// Validates: Requirements 4.5
func TestProperty_ProductDeletionRemovesFromInventory(t *testing.T) {
	productRepo := NewProductRepository(memory.New())

	properties := gopter.NewProperties(nil)

	properties.Property("a deleted product can no longer be found or listed", prop.ForAll(
		func(name string) bool {
			ctx := context.Background()

			product := &domain.Product{ID: uuid.New().String(), Name: name, Active: true}
			if err := productRepo.Create(ctx, testStoreID, product); err != nil {
				return false
			}

			if err := productRepo.Delete(ctx, testStoreID, product.ID); err != nil {
				t.Logf("FAIL: Failed to delete product: %v", err)
				return false
			}

			if _, err := productRepo.FindByID(ctx, testStoreID, product.ID); !errors.Is(err, ErrProductNotFound) {
				t.Logf("FAIL: Expected ErrProductNotFound, got %v", err)
				return false
			}

			products, err := productRepo.List(ctx, testStoreID)
			if err != nil {
				return false
			}
			for _, p := range products {
				if p.ID == product.ID {
					t.Logf("FAIL: deleted product still listed")
					return false
				}
			}

			return errors.Is(productRepo.Delete(ctx, testStoreID, product.ID), ErrProductNotFound)
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductUpdatePreservesUnknownFields(t *testing.T) {
	store := memory.New()
	productRepo := NewProductRepository(store)
	ctx := context.Background()

	path, _ := ProductPath(testStoreID, "prod_1")
	if err := store.Commit(ctx, ledger.Put(path, []byte(`{"id":"prod_1","name":"Lipstick","price":24.99,"stock":50,"supplier":"Acme"}`))); err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}

	if _, err := productRepo.Update(ctx, testStoreID, "prod_1", map[string]any{"stock": 40}); err != nil {
		t.Fatalf("Failed to update product: %v", err)
	}

	doc, err := store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Failed to read product: %v", err)
	}
	obj, err := ledger.DecodeObject(doc.Value)
	if err != nil {
		t.Fatalf("Failed to decode product: %v", err)
	}
	if obj["supplier"] != "Acme" {
		t.Errorf("Expected unknown field to survive, got %v", obj["supplier"])
	}
	if obj["price"].(interface{ String() string }).String() != "24.99" {
		t.Errorf("Expected price to be written back unchanged, got %v", obj["price"])
	}
}

func TestProductWithoutActiveFieldIsActive(t *testing.T) {
	store := memory.New()
	productRepo := NewProductRepository(store)
	ctx := context.Background()

	path, _ := ProductPath(testStoreID, "prod_legacy")
	_ = store.Commit(ctx, ledger.Put(path, []byte(`{"id":"prod_legacy","stock":3}`)))

	product, err := productRepo.FindByID(ctx, testStoreID, "prod_legacy")
	if err != nil {
		t.Fatalf("Failed to find product: %v", err)
	}
	if !product.Active {
		t.Error("Expected product without active flag to be active")
	}
}

func TestProductUpdateMissing(t *testing.T) {
	productRepo := NewProductRepository(memory.New())

	_, err := productRepo.Update(context.Background(), testStoreID, "nope", map[string]any{"stock": 1})
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}

func TestProductSearch(t *testing.T) {
	productRepo := NewProductRepository(memory.New())
	ctx := context.Background()

	for _, p := range []*domain.Product{
		{ID: "p1", Name: "Matte Ruby Lipstick", SKU: "LIP-001"},
		{ID: "p2", Name: "Silk Foundation", SKU: "FND-001", Barcode: "0123"},
	} {
		if err := productRepo.Create(ctx, testStoreID, p); err != nil {
			t.Fatalf("Failed to create product: %v", err)
		}
	}

	cases := map[string]int{"ruby": 1, "fnd": 1, "0123": 1, "": 2, "zzz": 0}
	for q, want := range cases {
		got, err := productRepo.Search(ctx, testStoreID, q)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", q, err)
		}
		if len(got) != want {
			t.Errorf("Search(%q): expected %d results, got %d", q, want, len(got))
		}
	}

	if err := productRepo.Create(ctx, testStoreID, &domain.Product{ID: "p1"}); !errors.Is(err, ErrProductAlreadyExists) {
		t.Errorf("Expected ErrProductAlreadyExists, got %v", err)
	}
}
