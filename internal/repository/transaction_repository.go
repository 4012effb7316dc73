package repository

import (
	"context"
	"errors"
	"fmt"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// DefaultTransactionLimit is used when callers do not ask for a page size.
const DefaultTransactionLimit = 100

// TransactionRepository reads the immutable sale records. Records are only
// ever written by the sale processor's atomic commit.
type TransactionRepository interface {
	FindByID(ctx context.Context, storeID, id string) (*domain.Transaction, error)
	ListRecent(ctx context.Context, storeID string, limit int) ([]*domain.Transaction, error)
	// List returns every transaction of the store, oldest first.
	List(ctx context.Context, storeID string) ([]*domain.Transaction, error)
}

type transactionRepository struct {
	store ledger.Store
}

// NewTransactionRepository creates a new instance of TransactionRepository
func NewTransactionRepository(store ledger.Store) TransactionRepository {
	return &transactionRepository{store: store}
}

func (r *transactionRepository) FindByID(ctx context.Context, storeID, id string) (*domain.Transaction, error) {
	path, err := TransactionPath(storeID, id)
	if err != nil {
		return nil, err
	}

	tx := &domain.Transaction{}
	if _, err := ledger.GetJSON(ctx, r.store, path, tx); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by ID: %w", err)
	}

	return tx, nil
}

// ListRecent returns up to limit transactions, newest first. Transaction ids
// start with their creation time, so path order is creation order.
func (r *transactionRepository) ListRecent(ctx context.Context, storeID string, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}

	all, err := r.List(ctx, storeID)
	if err != nil {
		return nil, err
	}

	if len(all) > limit {
		all = all[len(all)-limit:]
	}

	recent := make([]*domain.Transaction, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		recent = append(recent, all[i])
	}

	return recent, nil
}

func (r *transactionRepository) List(ctx context.Context, storeID string) ([]*domain.Transaction, error) {
	parent, err := storePath(storeID, transactionsColl)
	if err != nil {
		return nil, err
	}

	all, err := ledger.ListJSON[*domain.Transaction](ctx, r.store, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return all, nil
}
