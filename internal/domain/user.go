package domain

import "time"

const (
	RoleStaff   = "staff"
	RoleManager = "manager"
	RoleAdmin   = "admin"
	RoleOwner   = "owner"
)

// AdminRoles may manage inventory, staff and store configuration.
var AdminRoles = []string{RoleAdmin, RoleOwner, RoleManager}

// IsValidRole reports whether role is one of the staff roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleStaff, RoleManager, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// IsAdminRole reports whether role grants administrative access.
func IsAdminRole(role string) bool {
	for _, r := range AdminRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a staff account of a store
type User struct {
	ID           string    `json:"id"`
	StoreID      string    `json:"store_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by,omitempty"`
}

// RefreshToken represents a long-lived token used to mint access tokens
type RefreshToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	StoreID   string    `json:"store_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `json:"revoked"`
}
