package repository

import (
	"context"
	"errors"
	"fmt"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this email already exists")
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, storeID, id string) (*domain.User, error)
	ListByStore(ctx context.Context, storeID string) ([]*domain.User, error)
}

// userRecord is the stored form of a user; unlike domain.User it carries
// the password hash.
type userRecord struct {
	domain.User
	PasswordHash string `json:"password_hash"`
}

func (r userRecord) toDomain() *domain.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return &u
}

// emailIndexEntry maps a login email to the user document.
type emailIndexEntry struct {
	UserID  string `json:"user_id"`
	StoreID string `json:"store_id"`
}

type userRepository struct {
	store ledger.Store
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(store ledger.Store) UserRepository {
	return &userRepository{store: store}
}

// Create stores the user and claims its email in one atomic commit
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	userPath, err := storePath(user.StoreID, usersColl, user.ID)
	if err != nil {
		return err
	}
	indexPath, err := emailIndexPath(user.Email)
	if err != nil {
		return err
	}

	userRaw, err := ledger.Marshal(userRecord{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return err
	}
	indexRaw, err := ledger.Marshal(emailIndexEntry{UserID: user.ID, StoreID: user.StoreID})
	if err != nil {
		return err
	}

	err = r.store.Commit(ctx, ledger.Create(userPath, userRaw), ledger.Create(indexPath, indexRaw))
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrConflict) {
		if _, getErr := r.store.Get(ctx, indexPath); getErr == nil {
			return ErrUserAlreadyExists
		}
	}
	return fmt.Errorf("failed to create user: %w", err)
}

// FindByEmail resolves the email index, case-insensitively
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	indexPath, err := emailIndexPath(email)
	if err != nil {
		return nil, ErrUserNotFound
	}

	var entry emailIndexEntry
	if _, err := ledger.GetJSON(ctx, r.store, indexPath, &entry); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return r.FindByID(ctx, entry.StoreID, entry.UserID)
}

func (r *userRepository) FindByID(ctx context.Context, storeID, id string) (*domain.User, error) {
	path, err := storePath(storeID, usersColl, id)
	if err != nil {
		return nil, err
	}

	var rec userRecord
	if _, err := ledger.GetJSON(ctx, r.store, path, &rec); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return rec.toDomain(), nil
}

func (r *userRepository) ListByStore(ctx context.Context, storeID string) ([]*domain.User, error) {
	parent, err := storePath(storeID, usersColl)
	if err != nil {
		return nil, err
	}

	records, err := ledger.ListJSON[userRecord](ctx, r.store, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*domain.User, 0, len(records))
	for _, rec := range records {
		users = append(users, rec.toDomain())
	}
	return users, nil
}
