package repository

import (
	"context"

	"crm-auth-service/internal/user/domain"
)

// Repository defines persistence for user records.
type Repository interface {
	// GetByUsername returns the user for username, or nil if not found.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByID returns the user for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// Create persists the user. The user must have ID set.
	Create(ctx context.Context, u *domain.User) error
	// UpdateAttributes replaces the user's department and position (directory sync).
	UpdateAttributes(ctx context.Context, id, department, position string) error
}
