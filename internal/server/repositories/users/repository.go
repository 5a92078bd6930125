// Package users declares the identity repository contract and its
// PostgreSQL and in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/vidauth/internal/server/models"
)

// Repository persists identities. Lookups return common.ErrNotFound when no
// row matches; writes that break username or email uniqueness return
// common.ErrConflict.
type Repository interface {
	// Create stores u, assigning an ID when u.ID is empty.
	Create(ctx context.Context, u *models.User) (*models.User, error)

	FindByID(ctx context.Context, id string) (*models.User, error)

	// FindByUsernameOrEmail matches case-insensitively on either field.
	// An empty argument matches nothing.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)

	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// UpdateAccountDetails overwrites the non-empty fields only.
	UpdateAccountDetails(ctx context.Context, id, fullName, email string) (*models.User, error)

	UpdateAvatar(ctx context.Context, id, url string) (*models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (*models.User, error)
}
