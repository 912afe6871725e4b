package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/models"
	"github.com/lumenlabs/identity-service/internal/domain/repository"
)

// UserService covers native (password) registration and login plus profile
// management. Federated login lives in OAuthService; the two meet only at
// the shared user store.
type UserService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	events EventPublisher
	logger *zap.Logger
}

// NewUserService wires the native-identity service.
func NewUserService(users repository.UserRepository, hasher PasswordHasher, events EventPublisher, logger *zap.Logger) *UserService {
	if events == nil {
		events = NopPublisher{}
	}
	return &UserService{
		users:  users,
		hasher: hasher,
		events: events,
		logger: logger.Named("user_service"),
	}
}

// RegisterInput carries a native registration request.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName *string
}

// Register creates a user with a password credential. Uniqueness is
// double-checked by the database; the early lookups just produce friendlier
// errors for the common case.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if _, err := s.users.GetByEmailWithPassword(ctx, email); err == nil {
		return nil, fmt.Errorf("email %s: %w", email, domainErrors.ErrEmailExists)
	} else if !errors.Is(err, domainErrors.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     in.Username,
		FullName:     in.FullName,
		PasswordHash: &hash,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.events.PublishUserRegistered(ctx, UserRegisteredEvent{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		AuthType: "password",
	})
	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Authenticate verifies a native login. The same error covers an unknown
// email and a wrong password.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmailWithPassword(ctx, email)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, domainErrors.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.CheckPasswordHash(password, *user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, domainErrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, fmt.Errorf("user %s: %w", user.ID, domainErrors.ErrUserInactive)
	}

	s.events.PublishUserLoggedIn(ctx, UserLoggedInEvent{
		UserID:     user.ID,
		AuthMethod: "password",
	})
	return user, nil
}

// GetByID loads a user.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfileInput carries a profile update; nil fields are untouched.
type UpdateProfileInput struct {
	Username  *string
	FullName  *string
	AvatarURL *string
}

// UpdateProfile applies a partial profile update.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.FullName != nil {
		user.FullName = in.FullName
	}
	if in.AvatarURL != nil {
		user.AvatarURL = in.AvatarURL
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword sets a new password. Users with an existing credential must
// present it; OAuth-only users may set a first password without one.
func (s *UserService) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if user.HasPassword() {
		ok, err := s.hasher.CheckPasswordHash(currentPassword, *user.PasswordHash)
		if err != nil {
			return fmt.Errorf("failed to verify password: %w", err)
		}
		if !ok {
			return domainErrors.ErrInvalidCredentials
		}
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = &hash

	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.logger.Info("Password changed", zap.String("user_id", user.ID.String()))
	return nil
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ListUsers returns a page of users for the admin API. Out-of-range paging
// parameters are clamped rather than rejected.
func (s *UserService) ListUsers(ctx context.Context, offset, limit int) ([]*models.User, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.users.List(ctx, offset, limit)
}

// AdminUpdateInput carries an administrative user update; nil fields are
// untouched.
type AdminUpdateInput struct {
	Username  *string
	FullName  *string
	AvatarURL *string
	Role      *string
	IsActive  *bool
}

// AdminUpdateUser applies an administrative update. Unlike UpdateProfile it
// may change the role and activation state.
func (s *UserService) AdminUpdateUser(ctx context.Context, id uuid.UUID, in AdminUpdateInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.FullName != nil {
		user.FullName = in.FullName
	}
	if in.AvatarURL != nil {
		user.AvatarURL = in.AvatarURL
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User updated by admin",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role),
		zap.Bool("is_active", user.IsActive))
	return user, nil
}

// DeleteUser removes a user and, through the schema cascade, their linked
// accounts.
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.String("user_id", id.String()))
	return nil
}
