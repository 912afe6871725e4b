package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/models"
)

const usernameCreateAttempts = 3

// reconcile resolves the external identity against the local store. It runs
// inside a transaction; the unique constraints on oauth_accounts are the
// final arbiter, and the caller retries once in a fresh transaction when an
// insert loses a race. Resolution order:
//
//  1. (provider, provider_user_id) already linked: returning user.
//  2. linkUserID set: attach to that authenticated user.
//  3. A verified local user owns the provider-verified email: merge.
//  4. Otherwise: create a new user.
func (s *OAuthService) reconcile(
	ctx context.Context,
	provider string,
	info *models.OAuthUserInfo,
	token *models.OAuthToken,
	rawProfile []byte,
	linkUserID *uuid.UUID,
) (*models.User, *models.OAuthAccount, bool, error) {
	account, err := s.accounts.FindByProviderUserID(ctx, provider, info.ProviderUserID)
	switch {
	case err == nil:
		user, err := s.refreshReturningAccount(ctx, account, info, token, rawProfile)
		if err != nil {
			return nil, nil, false, err
		}
		if linkUserID != nil && account.UserID != *linkUserID {
			// The identity the user tried to link already belongs to someone
			// else. Surfacing this after the refresh would leak a login, so
			// it is checked before returning.
			return nil, nil, false, fmt.Errorf("identity %s/%s: %w",
				provider, info.ProviderUserID, domainErrors.ErrAccountAlreadyLinkedToOtherUser)
		}
		return user, account, false, nil
	case !errors.Is(err, domainErrors.ErrNotFound):
		return nil, nil, false, err
	}

	if linkUserID != nil {
		user, account, err := s.linkToUser(ctx, *linkUserID, provider, info, token, rawProfile)
		if err != nil {
			return nil, nil, false, err
		}
		return user, account, false, nil
	}

	if info.Email != "" && info.EmailVerified {
		user, err := s.users.GetByEmail(ctx, info.Email)
		switch {
		case err == nil:
			// Attach only onto a locally verified owner of the address. An
			// unverified local claim to the email must not capture the
			// federated identity.
			if user.EmailVerified {
				account, err := s.mergeIntoUser(ctx, user, provider, info, token, rawProfile)
				if err != nil {
					return nil, nil, false, err
				}
				return user, account, false, nil
			}
		case !errors.Is(err, domainErrors.ErrNotFound):
			return nil, nil, false, err
		}
	}

	user, account, err := s.createFederatedUser(ctx, provider, info, token, rawProfile)
	if err != nil {
		return nil, nil, false, err
	}
	return user, account, true, nil
}

// refreshReturningAccount updates the stored tokens and profile snapshot for
// an already-linked identity and loads its user.
func (s *OAuthService) refreshReturningAccount(
	ctx context.Context,
	account *models.OAuthAccount,
	info *models.OAuthUserInfo,
	token *models.OAuthToken,
	rawProfile []byte,
) (*models.User, error) {
	applyProfile(account, info, token, rawProfile)
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, account.UserID)
	if err != nil {
		return nil, err
	}

	if promoteFromProvider(user, info) {
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// linkToUser attaches the external identity to an explicitly chosen user.
func (s *OAuthService) linkToUser(
	ctx context.Context,
	userID uuid.UUID,
	provider string,
	info *models.OAuthUserInfo,
	token *models.OAuthToken,
	rawProfile []byte,
) (*models.User, *models.OAuthAccount, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	account := newAccount(user.ID, provider, info, token, rawProfile)
	// An ErrDuplicateValue here means (provider, provider_user_id) was taken
	// between our lookup and the insert; the retried transaction resolves
	// whether the winner was us.
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, nil, err
	}

	s.events.PublishAccountLinked(ctx, AccountLinkedEvent{
		UserID:         user.ID,
		Provider:       provider,
		ProviderUserID: info.ProviderUserID,
	})
	s.logger.Info("OAuth account linked",
		zap.String("provider", provider),
		zap.String("user_id", user.ID.String()))
	return user, account, nil
}

// mergeIntoUser attaches the identity to the verified local owner of the
// provider-verified email.
func (s *OAuthService) mergeIntoUser(
	ctx context.Context,
	user *models.User,
	provider string,
	info *models.OAuthUserInfo,
	token *models.OAuthToken,
	rawProfile []byte,
) (*models.OAuthAccount, error) {
	account := newAccount(user.ID, provider, info, token, rawProfile)
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	if promoteFromProvider(user, info) {
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	s.events.PublishAccountLinked(ctx, AccountLinkedEvent{
		UserID:         user.ID,
		Provider:       provider,
		ProviderUserID: info.ProviderUserID,
	})
	s.logger.Info("OAuth account merged into existing user",
		zap.String("provider", provider),
		zap.String("user_id", user.ID.String()))
	return account, nil
}

// createFederatedUser provisions a new local user for a first federated
// login, then links the identity to it.
func (s *OAuthService) createFederatedUser(
	ctx context.Context,
	provider string,
	info *models.OAuthUserInfo,
	token *models.OAuthToken,
	rawProfile []byte,
) (*models.User, *models.OAuthAccount, error) {
	email := info.Email
	if email == "" {
		// Some providers withhold the email; synthesize a non-routable one so
		// the column stays populated. It is never treated as verified.
		email = fmt.Sprintf("%s_%s@users.noreply.%s.oauth", provider, info.ProviderUserID, provider)
	}

	var user *models.User
	for attempt := 0; attempt < usernameCreateAttempts; attempt++ {
		candidate := &models.User{
			ID:            uuid.New(),
			Email:         email,
			Username:      deriveUsername(email),
			EmailVerified: info.EmailVerified && info.Email != "",
			IsOAuthUser:   true,
			Role:          models.RoleUser,
			IsActive:      true,
		}
		if info.Name != "" {
			name := info.Name
			candidate.FullName = &name
		}
		if info.AvatarURL != "" {
			avatar := info.AvatarURL
			candidate.AvatarURL = &avatar
		}

		err := s.users.Create(ctx, candidate)
		if err == nil {
			user = candidate
			break
		}
		if errors.Is(err, domainErrors.ErrUsernameExists) && attempt < usernameCreateAttempts-1 {
			continue
		}
		return nil, nil, err
	}

	account := newAccount(user.ID, provider, info, token, rawProfile)
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, nil, err
	}

	s.logger.Info("User provisioned from OAuth login",
		zap.String("provider", provider),
		zap.String("user_id", user.ID.String()))
	return user, account, nil
}

// newAccount builds an OAuthAccount row from the provider response.
func newAccount(userID uuid.UUID, provider string, info *models.OAuthUserInfo, token *models.OAuthToken, rawProfile []byte) *models.OAuthAccount {
	account := &models.OAuthAccount{
		ID:             uuid.New(),
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: info.ProviderUserID,
	}
	applyProfile(account, info, token, rawProfile)
	return account
}

// applyProfile copies the latest provider profile and tokens onto the
// account row.
func applyProfile(account *models.OAuthAccount, info *models.OAuthUserInfo, token *models.OAuthToken, rawProfile []byte) {
	account.ProviderEmail = optional(info.Email)
	account.ProviderName = optional(info.Name)
	account.ProviderAvatarURL = optional(info.AvatarURL)
	account.AccessToken = optional(token.AccessToken)
	// Providers omit the refresh token on repeat grants; a stored one stays
	// usable, so it is only ever replaced, never cleared.
	if rt := optional(token.RefreshToken); rt != nil {
		account.RefreshToken = rt
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		account.TokenExpiresAt = &expiry
	} else {
		account.TokenExpiresAt = nil
	}
	if json.Valid(rawProfile) {
		account.ProviderData = json.RawMessage(rawProfile)
	}
}

// promoteFromProvider fills user profile gaps from the provider profile and
// promotes email verification when the provider asserts it for the same
// address. It never overwrites values the user already has.
func promoteFromProvider(user *models.User, info *models.OAuthUserInfo) bool {
	changed := false
	if user.FullName == nil && info.Name != "" {
		name := info.Name
		user.FullName = &name
		changed = true
	}
	if user.AvatarURL == nil && info.AvatarURL != "" {
		avatar := info.AvatarURL
		user.AvatarURL = &avatar
		changed = true
	}
	if !user.EmailVerified && info.EmailVerified &&
		info.Email != "" && strings.EqualFold(info.Email, user.Email) {
		user.EmailVerified = true
		changed = true
	}
	return changed
}

// deriveUsername builds a collision-resistant username from the email local
// part. The random suffix keeps retries cheap when two providers hand out
// the same local part.
func deriveUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.ToLower(local)

	var b strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if base == "" {
		base = "user"
	}
	if len(base) > 40 {
		base = base[:40]
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; fall back to a
		// time-derived suffix rather than panic in a request path.
		return fmt.Sprintf("%s_%x", base, uuid.New().ID())
	}
	return base + "_" + hex.EncodeToString(suffix)
}

// optional returns nil for the empty string, a pointer otherwise.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
