package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
)

var (
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrCustomerAlreadyExists = errors.New("customer with this id already exists")
)

// CustomerRepository defines the interface for customer data access
type CustomerRepository interface {
	Create(ctx context.Context, storeID string, customer *domain.Customer) error
	FindByID(ctx context.Context, storeID, id string) (*domain.Customer, error)
	List(ctx context.Context, storeID string) ([]*domain.Customer, error)
	Search(ctx context.Context, storeID, query string) ([]*domain.Customer, error)
}

type customerRepository struct {
	store ledger.Store
}

// NewCustomerRepository creates a new instance of CustomerRepository
func NewCustomerRepository(store ledger.Store) CustomerRepository {
	return &customerRepository{store: store}
}

func (r *customerRepository) Create(ctx context.Context, storeID string, customer *domain.Customer) error {
	path, err := storePath(storeID, customersColl, customer.ID)
	if err != nil {
		return err
	}

	if err := ledger.CreateJSON(ctx, r.store, path, customer); err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return ErrCustomerAlreadyExists
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

func (r *customerRepository) FindByID(ctx context.Context, storeID, id string) (*domain.Customer, error) {
	path, err := storePath(storeID, customersColl, id)
	if err != nil {
		return nil, err
	}

	customer := &domain.Customer{}
	if _, err := ledger.GetJSON(ctx, r.store, path, customer); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to find customer by ID: %w", err)
	}

	return customer, nil
}

func (r *customerRepository) List(ctx context.Context, storeID string) ([]*domain.Customer, error) {
	parent, err := storePath(storeID, customersColl)
	if err != nil {
		return nil, err
	}

	customers, err := ledger.ListJSON[*domain.Customer](ctx, r.store, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	return customers, nil
}

// Search matches query case-insensitively against the name, or as a
// substring of the phone number
func (r *customerRepository) Search(ctx context.Context, storeID, query string) ([]*domain.Customer, error) {
	customers, err := r.List(ctx, storeID)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return customers, nil
	}

	matches := []*domain.Customer{}
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(c.Phone, q) {
			matches = append(matches, c)
		}
	}

	return matches, nil
}
