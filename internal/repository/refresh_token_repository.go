package repository

import (
	"context"
	"errors"
	"fmt"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")
)

// RefreshTokenRepository defines the interface for refresh token data access
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
}

type refreshTokenRepository struct {
	store ledger.Store
}

// NewRefreshTokenRepository creates a new instance of RefreshTokenRepository
func NewRefreshTokenRepository(store ledger.Store) RefreshTokenRepository {
	return &refreshTokenRepository{store: store}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	path, err := ledger.Join(refreshTokensRoot, token.Token)
	if err != nil {
		return err
	}

	if err := ledger.CreateJSON(ctx, r.store, path, token); err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	return nil
}

// FindByToken retrieves a refresh token that has not been revoked
func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	path, err := ledger.Join(refreshTokensRoot, token)
	if err != nil {
		return nil, ErrRefreshTokenNotFound
	}

	refreshToken := &domain.RefreshToken{}
	if _, err := ledger.GetJSON(ctx, r.store, path, refreshToken); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	if refreshToken.Revoked {
		return nil, ErrRefreshTokenRevoked
	}

	return refreshToken, nil
}

// Revoke marks a refresh token as revoked
func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	path, err := ledger.Join(refreshTokensRoot, token)
	if err != nil {
		return ErrRefreshTokenNotFound
	}

	if _, err := ledger.Patch(ctx, r.store, path, map[string]any{"revoked": true}); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrRefreshTokenNotFound
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return nil
}
