package service

import (
	"context"
	"errors"
	"strings"

	"velvet-pos/internal/clock"
	"velvet-pos/internal/domain"
	"velvet-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrPhoneRequired = errors.New("phone number required")

// NewCustomer holds the attributes of a customer being registered
type NewCustomer struct {
	Name        string
	Email       string
	Phone       string
	Points      int
	LoyaltyTier string
	Notes       string
}

// CustomerService manages a store's customer records
type CustomerService interface {
	ListCustomers(ctx context.Context, storeID, search string) ([]*domain.Customer, error)
	GetCustomer(ctx context.Context, storeID, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, storeID string, input NewCustomer) (*domain.Customer, error)
}

type customerService struct {
	customers repository.CustomerRepository
	clock     clock.Clock
	logger    *zap.Logger
}

// NewCustomerService creates a new instance of CustomerService
func NewCustomerService(customers repository.CustomerRepository, clk clock.Clock, logger *zap.Logger) CustomerService {
	return &customerService{
		customers: customers,
		clock:     clk,
		logger:    logger.Named("customers"),
	}
}

func (s *customerService) ListCustomers(ctx context.Context, storeID, search string) ([]*domain.Customer, error) {
	if strings.TrimSpace(search) != "" {
		return s.customers.Search(ctx, storeID, search)
	}
	return s.customers.List(ctx, storeID)
}

func (s *customerService) GetCustomer(ctx context.Context, storeID, id string) (*domain.Customer, error) {
	return s.customers.FindByID(ctx, storeID, id)
}

// CreateCustomer registers a customer; phone is the only required field
func (s *customerService) CreateCustomer(ctx context.Context, storeID string, input NewCustomer) (*domain.Customer, error) {
	if strings.TrimSpace(input.Phone) == "" {
		return nil, ErrPhoneRequired
	}

	tier := input.LoyaltyTier
	if tier == "" {
		tier = domain.DefaultLoyaltyTier
	}

	customer := &domain.Customer{
		ID:             uuid.New().String(),
		Name:           input.Name,
		Email:          input.Email,
		Phone:          input.Phone,
		Points:         input.Points,
		LoyaltyTier:    tier,
		Notes:          input.Notes,
		CreatedAt:      s.clock.Now().UTC(),
		TotalPurchases: decimal.Zero,
	}

	if err := s.customers.Create(ctx, storeID, customer); err != nil {
		return nil, err
	}

	s.logger.Info("Created customer",
		zap.String("store_id", storeID),
		zap.String("customer_id", customer.ID),
	)
	return customer, nil
}
