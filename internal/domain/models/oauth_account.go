package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OAuthAccount links a local user to an identity at an external provider.
// The (provider, provider_user_id) pair is globally unique and a user holds
// at most one account per provider; both constraints are enforced by the
// oauth_accounts table and are the final arbiter under concurrency.
type OAuthAccount struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	UserID            uuid.UUID       `json:"user_id" db:"user_id"`
	Provider          string          `json:"provider" db:"provider"`
	ProviderUserID    string          `json:"provider_user_id" db:"provider_user_id"`
	ProviderEmail     *string         `json:"provider_email,omitempty" db:"provider_email"`
	ProviderName      *string         `json:"provider_name,omitempty" db:"provider_name"`
	ProviderAvatarURL *string         `json:"provider_avatar_url,omitempty" db:"provider_avatar_url"`
	AccessToken       *string         `json:"-" db:"access_token"`
	RefreshToken      *string         `json:"-" db:"refresh_token"`
	TokenExpiresAt    *time.Time      `json:"token_expires_at,omitempty" db:"token_expires_at"`
	ProviderData      json.RawMessage `json:"-" db:"provider_data"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// OAuthAccountSummary is the API representation of a linked account.
// Raw provider tokens are never exposed.
type OAuthAccountSummary struct {
	ID                uuid.UUID  `json:"id"`
	Provider          string     `json:"provider"`
	ProviderUserID    string     `json:"provider_user_id"`
	ProviderEmail     *string    `json:"provider_email,omitempty"`
	ProviderName      *string    `json:"provider_name,omitempty"`
	ProviderAvatarURL *string    `json:"provider_avatar_url,omitempty"`
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Summary strips token material from the account for API responses.
func (a *OAuthAccount) Summary() *OAuthAccountSummary {
	return &OAuthAccountSummary{
		ID:                a.ID,
		Provider:          a.Provider,
		ProviderUserID:    a.ProviderUserID,
		ProviderEmail:     a.ProviderEmail,
		ProviderName:      a.ProviderName,
		ProviderAvatarURL: a.ProviderAvatarURL,
		TokenExpiresAt:    a.TokenExpiresAt,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
