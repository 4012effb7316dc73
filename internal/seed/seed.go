// Package seed loads the sample boutique used for demos and local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"velvet-pos/internal/clock"
	"velvet-pos/internal/domain"
	"velvet-pos/internal/repository"
	"velvet-pos/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultStoreID is the store the demo data is written to.
const DefaultStoreID = "default"

const (
	demoOwnerID   = "demo_owner"
	demoOwnerName = "Admin User"
	systemActor   = "system"
)

var categories = []domain.Category{
	{ID: "cat_1", Name: "Lipstick", SortOrder: 1},
	{ID: "cat_2", Name: "Foundation", SortOrder: 2},
	{ID: "cat_3", Name: "Eyeshadow", SortOrder: 3},
	{ID: "cat_4", Name: "Skincare", SortOrder: 4},
	{ID: "cat_5", Name: "Accessories", SortOrder: 5},
}

type demoProduct struct {
	id, name, sku, price, category, description string
	stock                                       int
}

var products = []demoProduct{
	{"prod_1", "Matte Ruby Lipstick", "LIP-001", "24.99", "Lipstick", "Long-lasting matte finish lipstick in classic ruby red", 50},
	{"prod_2", "Velvet Rose Lipstick", "LIP-002", "26.99", "Lipstick", "Hydrating velvet finish in romantic rose pink", 35},
	{"prod_3", "Silk Foundation - Beige", "FND-001", "42.99", "Foundation", "Lightweight silk formula for natural coverage", 25},
	{"prod_4", "Naked Palette Eyeshadow", "EYE-001", "54.99", "Eyeshadow", "12-shade neutral palette for everyday looks", 20},
	{"prod_5", "Hydrating Face Serum", "SKN-001", "68.99", "Skincare", "Hyaluronic acid serum for intense hydration", 15},
	{"prod_6", "Professional Brush Set", "ACC-001", "89.99", "Accessories", "12-piece professional makeup brush collection", 10},
}

type demoCustomer struct {
	id, name, email, phone, tier, purchases string
	points                                  int
}

var customers = []demoCustomer{
	{"cust_1", "Emma Thompson", "emma@email.com", "555-0101", "Gold", "1250.00", 245},
	{"cust_2", "Sophia Rodriguez", "sophia@email.com", "555-0102", "Silver", "450.00", 89},
	{"cust_3", "Olivia Chen", "olivia@email.com", "555-0103", "Platinum", "2890.00", 456},
}

// Owner is the login created for the demo store
type Owner struct {
	Email    string
	Password string
}

// Result lists the ids that were created. Documents that already existed
// are left untouched and not listed.
type Result struct {
	Categories []string `json:"categories"`
	Products   []string `json:"products"`
	Customers  []string `json:"customers"`
	Config     bool     `json:"config"`
	Owner      string   `json:"owner,omitempty"`
}

// Seeder writes the demo store through the repositories
type Seeder struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	customers  repository.CustomerRepository
	configs    repository.ConfigRepository
	users      repository.UserRepository
	clock      clock.Clock
	owner      Owner
	logger     *zap.Logger
}

// New creates a Seeder. An owner without email or password is not seeded.
func New(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	customers repository.CustomerRepository,
	configs repository.ConfigRepository,
	users repository.UserRepository,
	clk clock.Clock,
	owner Owner,
	logger *zap.Logger,
) *Seeder {
	return &Seeder{
		products:   products,
		categories: categories,
		customers:  customers,
		configs:    configs,
		users:      users,
		clock:      clk,
		owner:      owner,
		logger:     logger.Named("seed"),
	}
}

// Seed creates whatever part of the demo store is missing. Running it again
// never overwrites stock, sales or edited settings.
func (s *Seeder) Seed(ctx context.Context, storeID string) (*Result, error) {
	res := &Result{Categories: []string{}, Products: []string{}, Customers: []string{}}
	now := s.clock.Now().UTC()

	for _, c := range categories {
		category := c
		err := s.categories.Create(ctx, storeID, &category)
		switch {
		case err == nil:
			res.Categories = append(res.Categories, c.ID)
		case errors.Is(err, repository.ErrCategoryAlreadyExists):
		default:
			return nil, fmt.Errorf("failed to seed category %s: %w", c.ID, err)
		}
	}

	for _, p := range products {
		err := s.products.Create(ctx, storeID, &domain.Product{
			ID:          p.id,
			Name:        p.name,
			SKU:         p.sku,
			Price:       decimal.RequireFromString(p.price),
			Category:    p.category,
			Description: p.description,
			Stock:       p.stock,
			Active:      true,
			CreatedAt:   now,
			CreatedBy:   systemActor,
		})
		switch {
		case err == nil:
			res.Products = append(res.Products, p.id)
		case errors.Is(err, repository.ErrProductAlreadyExists):
		default:
			return nil, fmt.Errorf("failed to seed product %s: %w", p.id, err)
		}
	}

	for _, c := range customers {
		err := s.customers.Create(ctx, storeID, &domain.Customer{
			ID:             c.id,
			Name:           c.name,
			Email:          c.email,
			Phone:          c.phone,
			Points:         c.points,
			LoyaltyTier:    c.tier,
			CreatedAt:      now,
			TotalPurchases: decimal.RequireFromString(c.purchases),
		})
		switch {
		case err == nil:
			res.Customers = append(res.Customers, c.id)
		case errors.Is(err, repository.ErrCustomerAlreadyExists):
		default:
			return nil, fmt.Errorf("failed to seed customer %s: %w", c.id, err)
		}
	}

	created, err := s.seedConfig(ctx, storeID)
	if err != nil {
		return nil, err
	}
	res.Config = created

	if s.owner.Email != "" && s.owner.Password != "" {
		email, err := s.seedOwner(ctx, storeID, now)
		if err != nil {
			return nil, err
		}
		res.Owner = email
	}

	s.logger.Info("Demo data initialized",
		zap.String("store_id", storeID),
		zap.Int("categories", len(res.Categories)),
		zap.Int("products", len(res.Products)),
		zap.Int("customers", len(res.Customers)),
		zap.Bool("config", res.Config),
	)

	return res, nil
}

func (s *Seeder) seedConfig(ctx context.Context, storeID string) (bool, error) {
	current, err := s.configs.Get(ctx, storeID)
	if err != nil {
		return false, fmt.Errorf("failed to read store config: %w", err)
	}
	if current.Name != "" || current.TaxRate.Valid || current.Timezone != "" {
		return false, nil
	}

	err = s.configs.Set(ctx, storeID, &domain.StoreConfig{
		Name:           service.DefaultStoreName,
		Currency:       service.DefaultCurrency,
		CurrencySymbol: service.DefaultCurrencySymbol,
		TaxRate:        decimal.NewNullDecimal(service.DefaultTaxRate),
		ThemeColor:     service.DefaultThemeColor,
		Timezone:       "America/New_York",
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed store config: %w", err)
	}
	return true, nil
}

// seedOwner returns the owner's email when the account was created.
func (s *Seeder) seedOwner(ctx context.Context, storeID string, now time.Time) (string, error) {
	if _, err := s.users.FindByEmail(ctx, s.owner.Email); err == nil {
		return "", nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return "", fmt.Errorf("failed to look up demo owner: %w", err)
	}

	hash, err := service.HashPassword(s.owner.Password)
	if err != nil {
		return "", err
	}

	err = s.users.Create(ctx, &domain.User{
		ID:           demoOwnerID,
		StoreID:      storeID,
		Email:        s.owner.Email,
		Name:         demoOwnerName,
		Role:         domain.RoleOwner,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		CreatedBy:    systemActor,
	})
	if errors.Is(err, repository.ErrUserAlreadyExists) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to seed demo owner: %w", err)
	}

	s.logger.Info("Created demo owner", zap.String("email", s.owner.Email))
	return s.owner.Email, nil
}
