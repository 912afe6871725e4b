package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumenlabs/identity-service/internal/domain/models"
)

// UserRepository is the persistence boundary for users.
//
// GetByEmail prefers the verified owner of an address: email uniqueness is
// enforced only among verified emails (see migration 000001), so several
// unverified rows may share an address while at most one verified row does.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByEmailWithPassword resolves the user holding a password credential
	// for the address; used by native login.
	GetByEmailWithPassword(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	// List returns a page of users ordered by creation time.
	List(ctx context.Context, offset, limit int) ([]*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
