package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles. Admins may manage other users through the admin API.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the stable local identity. A user is created either by native
// registration (with a password credential) or by the OAuth reconciler on a
// first federated login (without one). PasswordHash is nil for OAuth-only
// users until they set a password via the profile API.
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	Username      string    `json:"username" db:"username"`
	FullName      *string   `json:"full_name,omitempty" db:"full_name"`
	AvatarURL     *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	PasswordHash  *string   `json:"-" db:"password_hash"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	IsOAuthUser   bool      `json:"is_oauth_user" db:"is_oauth_user"`
	Role          string    `json:"role" db:"role"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// HasPassword reports whether the user holds a usable password credential.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsAdmin reports whether the user may use the admin API.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserResponse is the user shape returned by API endpoints.
type UserResponse struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	FullName      *string   `json:"full_name,omitempty"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	IsOAuthUser   bool      `json:"is_oauth_user"`
	HasPassword   bool      `json:"has_password"`
	Role          string    `json:"role"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToResponse converts a User to its API representation.
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		EmailVerified: u.EmailVerified,
		IsOAuthUser:   u.IsOAuthUser,
		HasPassword:   u.HasPassword(),
		Role:          u.Role,
		IsActive:      u.IsActive,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
