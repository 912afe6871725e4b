package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/models"
)

type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) HashPassword(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *mockHasher) CheckPasswordHash(password, encodedHash string) (bool, error) {
	args := m.Called(password, encodedHash)
	return args.Bool(0), args.Error(1)
}

func newUserServiceFixture() (*UserService, *mockUserRepo, *mockHasher, *eventRecorder) {
	users := &mockUserRepo{}
	hasher := &mockHasher{}
	events := &eventRecorder{}
	return NewUserService(users, hasher, events, zap.NewNop()), users, hasher, events
}

func TestUserService_Register(t *testing.T) {
	svc, users, hasher, events := newUserServiceFixture()

	users.On("GetByEmailWithPassword", mock.Anything, "new@example.com").
		Return(nil, domainErrors.ErrNotFound).Once()
	hasher.On("HashPassword", "hunter2hunter2").Return("$argon2id$hash", nil).Once()
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "new@example.com" && u.Username == "newbie" && u.HasPassword() &&
			u.Role == models.RoleUser && u.IsActive
	})).Return(nil).Once()

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    " New@Example.com ",
		Username: "newbie",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	require.Len(t, events.registered, 1)
	assert.Equal(t, "password", events.registered[0].AuthType)
}

func TestUserService_Register_EmailTaken(t *testing.T) {
	svc, users, _, _ := newUserServiceFixture()

	existing := &models.User{ID: uuid.New(), Email: "new@example.com"}
	users.On("GetByEmailWithPassword", mock.Anything, "new@example.com").
		Return(existing, nil).Once()

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "new@example.com",
		Username: "newbie",
		Password: "hunter2hunter2",
	})
	assert.ErrorIs(t, err, domainErrors.ErrEmailExists)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUserService_Authenticate(t *testing.T) {
	svc, users, hasher, events := newUserServiceFixture()

	hash := "$argon2id$hash"
	user := &models.User{ID: uuid.New(), Email: "u@example.com", PasswordHash: &hash, IsActive: true}
	users.On("GetByEmailWithPassword", mock.Anything, "u@example.com").Return(user, nil)
	hasher.On("CheckPasswordHash", "right", hash).Return(true, nil).Once()
	hasher.On("CheckPasswordHash", "wrong", hash).Return(false, nil).Once()

	got, err := svc.Authenticate(context.Background(), "u@example.com", "right")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	require.Len(t, events.loggedIn, 1)
	assert.Equal(t, "password", events.loggedIn[0].AuthMethod)

	_, err = svc.Authenticate(context.Background(), "u@example.com", "wrong")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidCredentials)
}

func TestUserService_Authenticate_UnknownEmail(t *testing.T) {
	svc, users, _, _ := newUserServiceFixture()

	users.On("GetByEmailWithPassword", mock.Anything, "ghost@example.com").
		Return(nil, domainErrors.ErrNotFound).Once()

	_, err := svc.Authenticate(context.Background(), "ghost@example.com", "whatever")
	// Indistinguishable from a wrong password.
	assert.ErrorIs(t, err, domainErrors.ErrInvalidCredentials)
}

func TestUserService_Authenticate_DeactivatedUser(t *testing.T) {
	svc, users, hasher, events := newUserServiceFixture()

	hash := "$argon2id$hash"
	user := &models.User{ID: uuid.New(), Email: "u@example.com", PasswordHash: &hash, IsActive: false}
	users.On("GetByEmailWithPassword", mock.Anything, "u@example.com").Return(user, nil).Once()
	hasher.On("CheckPasswordHash", "right", hash).Return(true, nil).Once()

	_, err := svc.Authenticate(context.Background(), "u@example.com", "right")
	assert.ErrorIs(t, err, domainErrors.ErrUserInactive)
	assert.Empty(t, events.loggedIn)
}

func TestUserService_ChangePassword_RequiresCurrent(t *testing.T) {
	svc, users, hasher, _ := newUserServiceFixture()

	hash := "$argon2id$old"
	user := &models.User{ID: uuid.New(), Email: "u@example.com", PasswordHash: &hash}
	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	hasher.On("CheckPasswordHash", "wrong", hash).Return(false, nil).Once()

	err := svc.ChangePassword(context.Background(), user.ID, "wrong", "newpassword1")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidCredentials)
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUserService_ChangePassword_FirstPasswordForOAuthUser(t *testing.T) {
	svc, users, hasher, _ := newUserServiceFixture()

	user := &models.User{ID: uuid.New(), Email: "u@example.com", IsOAuthUser: true}
	users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
	hasher.On("HashPassword", "firstpassword1").Return("$argon2id$new", nil).Once()
	users.On("Update", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.HasPassword()
	})).Return(nil).Once()

	err := svc.ChangePassword(context.Background(), user.ID, "", "firstpassword1")
	require.NoError(t, err)
	// No current password to verify.
	hasher.AssertNotCalled(t, "CheckPasswordHash", mock.Anything, mock.Anything)
}

func TestUserService_UpdateProfile_Partial(t *testing.T) {
	svc, users, _, _ := newUserServiceFixture()

	name := "Old Name"
	user := &models.User{ID: uuid.New(), Email: "u@example.com", Username: "old", FullName: &name}
	users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
	users.On("Update", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Username == "renamed" && u.FullName != nil && *u.FullName == "Old Name"
	})).Return(nil).Once()

	newUsername := "renamed"
	got, err := svc.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{Username: &newUsername})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Username)
}

func TestUserService_ListUsers_ClampsPaging(t *testing.T) {
	svc, users, _, _ := newUserServiceFixture()

	page := []*models.User{{ID: uuid.New(), Email: "a@example.com"}}
	users.On("List", mock.Anything, 0, 100).Return(page, nil).Once()

	got, err := svc.ListUsers(context.Background(), -5, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	users.On("List", mock.Anything, 10, 1000).Return([]*models.User{}, nil).Once()
	_, err = svc.ListUsers(context.Background(), 10, 5000)
	require.NoError(t, err)
	users.AssertExpectations(t)
}

func TestUserService_AdminUpdateUser(t *testing.T) {
	svc, users, _, _ := newUserServiceFixture()

	user := &models.User{
		ID: uuid.New(), Email: "u@example.com", Username: "plain",
		Role: models.RoleUser, IsActive: true,
	}
	users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
	users.On("Update", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Role == models.RoleAdmin && !u.IsActive && u.Username == "plain"
	})).Return(nil).Once()

	role := models.RoleAdmin
	inactive := false
	got, err := svc.AdminUpdateUser(context.Background(), user.ID, AdminUpdateInput{
		Role:     &role,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())
	assert.False(t, got.IsActive)
}

func TestUserService_DeleteUser_NotFound(t *testing.T) {
	svc, users, _, _ := newUserServiceFixture()

	id := uuid.New()
	users.On("Delete", mock.Anything, id).Return(domainErrors.ErrUserNotFound).Once()

	err := svc.DeleteUser(context.Background(), id)
	assert.ErrorIs(t, err, domainErrors.ErrUserNotFound)
}
