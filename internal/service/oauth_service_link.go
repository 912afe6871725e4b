package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/models"
)

// InitiateLink starts a linking flow for an authenticated user. The minted
// state carries the user ID, binding the eventual callback to this subject.
func (s *OAuthService) InitiateLink(ctx context.Context, userID uuid.UUID, providerName, redirectURI string) (string, string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}

	_, err = s.accounts.FindByUserIDAndProvider(ctx, user.ID, providerName)
	switch {
	case err == nil:
		return "", "", fmt.Errorf("provider %s: %w", providerName, domainErrors.ErrAccountAlreadyLinked)
	case !errors.Is(err, domainErrors.ErrNotFound):
		return "", "", err
	}

	return s.InitiateOAuth(providerName, redirectURI, &user.ID)
}

// CompleteLink finishes a linking flow. The callback is rejected unless the
// state was minted for exactly this authenticated user.
func (s *OAuthService) CompleteLink(ctx context.Context, userID uuid.UUID, providerName, code, stateToken string) (*models.OAuthAccount, error) {
	_, account, _, err := s.handleCallback(ctx, providerName, code, stateToken, &userID)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// UnlinkAccount detaches a provider identity from the user. The last way
// into an account is never removed: a user with no password must keep at
// least one linked identity.
func (s *OAuthService) UnlinkAccount(ctx context.Context, userID uuid.UUID, providerName string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		if _, err := s.accounts.FindByUserIDAndProvider(ctx, user.ID, providerName); err != nil {
			if errors.Is(err, domainErrors.ErrNotFound) {
				return fmt.Errorf("provider %s: %w", providerName, domainErrors.ErrAccountNotLinked)
			}
			return err
		}

		if !user.HasPassword() {
			linked, err := s.accounts.CountByUserID(ctx, user.ID)
			if err != nil {
				return err
			}
			if linked <= 1 {
				return fmt.Errorf("cannot unlink %s: %w", providerName, domainErrors.ErrLastAuthMethod)
			}
		}

		if err := s.accounts.DeleteByUserIDAndProvider(ctx, user.ID, providerName); err != nil {
			return err
		}

		s.events.PublishAccountUnlinked(ctx, AccountUnlinkedEvent{
			UserID:   user.ID,
			Provider: providerName,
		})
		s.logger.Info("OAuth account unlinked",
			zap.String("provider", providerName),
			zap.String("user_id", user.ID.String()))
		return nil
	})
}

// UserWithAccounts loads a user together with their linked-account
// summaries, the combined view the profile endpoints serve.
func (s *OAuthService) UserWithAccounts(ctx context.Context, userID uuid.UUID) (*models.User, []*models.OAuthAccountSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	summaries, err := s.ListAccounts(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, summaries, nil
}

// ListAccounts returns the user's linked accounts without token material.
func (s *OAuthService) ListAccounts(ctx context.Context, userID uuid.UUID) ([]*models.OAuthAccountSummary, error) {
	accounts, err := s.accounts.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]*models.OAuthAccountSummary, 0, len(accounts))
	for _, account := range accounts {
		summaries = append(summaries, account.Summary())
	}
	return summaries, nil
}
