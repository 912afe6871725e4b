package service

import (
	"context"

	"github.com/google/uuid"
)

// PasswordHasher hashes and verifies password credentials.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPasswordHash(password, encodedHash string) (bool, error)
}

// TokenIssuer mints platform session credentials after a successful login or
// callback. Signing algorithm and claims layout are its own business.
type TokenIssuer interface {
	GenerateAccessToken(userID uuid.UUID) (string, error)
	ValidateAccessToken(raw string) (uuid.UUID, error)
}

// EventPublisher pushes domain events to the platform bus. Publishing is
// best-effort: failures are logged by the publisher and never fail the
// request that triggered them.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event UserRegisteredEvent)
	PublishUserLoggedIn(ctx context.Context, event UserLoggedInEvent)
	PublishAccountLinked(ctx context.Context, event AccountLinkedEvent)
	PublishAccountUnlinked(ctx context.Context, event AccountUnlinkedEvent)
}

// UserRegisteredEvent is emitted when a user is created, natively or by the
// OAuth reconciler.
type UserRegisteredEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	AuthType string    `json:"auth_type"` // "password" or "oauth_<provider>"
}

// UserLoggedInEvent is emitted on every successful authentication.
type UserLoggedInEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	AuthMethod string    `json:"auth_method"`
}

// AccountLinkedEvent is emitted when an external account is attached to a
// user, whether by explicit linking or by reconciliation.
type AccountLinkedEvent struct {
	UserID         uuid.UUID `json:"user_id"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
}

// AccountUnlinkedEvent is emitted when an external account is removed.
type AccountUnlinkedEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	Provider string    `json:"provider"`
}

// NopPublisher discards all events; used when the event bus is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishUserRegistered(context.Context, UserRegisteredEvent)   {}
func (NopPublisher) PublishUserLoggedIn(context.Context, UserLoggedInEvent)       {}
func (NopPublisher) PublishAccountLinked(context.Context, AccountLinkedEvent)     {}
func (NopPublisher) PublishAccountUnlinked(context.Context, AccountUnlinkedEvent) {}
