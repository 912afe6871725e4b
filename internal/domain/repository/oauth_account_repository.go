package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumenlabs/identity-service/internal/domain/models"
)

// OAuthAccountRepository is the persistence boundary for linked external
// accounts. Create surfaces unique-constraint violations as
// errors.ErrDuplicateValue ((provider, provider_user_id) taken) or
// errors.ErrAccountAlreadyLinked ((user_id, provider) taken) so callers can
// treat the database as the final arbiter under concurrent callbacks.
type OAuthAccountRepository interface {
	Create(ctx context.Context, acc *models.OAuthAccount) error
	FindByProviderUserID(ctx context.Context, provider, providerUserID string) (*models.OAuthAccount, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*models.OAuthAccount, error)
	FindByUserIDAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*models.OAuthAccount, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int, error)
	Update(ctx context.Context, acc *models.OAuthAccount) error
	DeleteByUserIDAndProvider(ctx context.Context, userID uuid.UUID, provider string) error
}
