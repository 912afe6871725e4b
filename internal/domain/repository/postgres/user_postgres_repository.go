package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/models"
	"github.com/lumenlabs/identity-service/internal/domain/repository"
)

// UserRepositoryPostgres implements repository.UserRepository for PostgreSQL.
type UserRepositoryPostgres struct {
	pool *pgxpool.Pool
}

// NewUserRepositoryPostgres creates a new instance.
func NewUserRepositoryPostgres(pool *pgxpool.Pool) *UserRepositoryPostgres {
	return &UserRepositoryPostgres{pool: pool}
}

const userColumns = `id, email, username, full_name, avatar_url, password_hash,
       email_verified, is_oauth_user, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.FullName, &u.AvatarURL, &u.PasswordHash,
		&u.EmailVerified, &u.IsOAuthUser, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	return u, nil
}

// Create persists a new user.
func (r *UserRepositoryPostgres) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, username, full_name, avatar_url, password_hash,
		                   email_verified, is_oauth_user, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := queryTarget(ctx, r.pool).QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.FullName, user.AvatarURL, user.PasswordHash,
		user.EmailVerified, user.IsOAuthUser, user.Role, user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch {
			case strings.Contains(pgErr.ConstraintName, "email"):
				return fmt.Errorf("email '%s' is taken: %w", user.Email, domainErrors.ErrEmailExists)
			case strings.Contains(pgErr.ConstraintName, "username"):
				return fmt.Errorf("username '%s' is taken: %w", user.Username, domainErrors.ErrUsernameExists)
			default:
				return fmt.Errorf("unique constraint %s violated: %w", pgErr.ConstraintName, domainErrors.ErrDuplicateValue)
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by its unique ID.
func (r *UserRepositoryPostgres) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(queryTarget(ctx, r.pool).QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by email, preferring the verified owner of the
// address when several unverified rows share it.
func (r *UserRepositoryPostgres) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1)
		ORDER BY email_verified DESC, created_at ASC
		LIMIT 1
	`
	return scanUser(queryTarget(ctx, r.pool).QueryRow(ctx, query, email))
}

// GetByEmailWithPassword retrieves the user holding a password credential for
// the address.
func (r *UserRepositoryPostgres) GetByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1) AND password_hash IS NOT NULL
		ORDER BY created_at ASC
		LIMIT 1
	`
	return scanUser(queryTarget(ctx, r.pool).QueryRow(ctx, query, email))
}

// GetByUsername retrieves a user by username.
func (r *UserRepositoryPostgres) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(queryTarget(ctx, r.pool).QueryRow(ctx, query, username))
}

// Update persists mutable user fields.
func (r *UserRepositoryPostgres) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $1, username = $2, full_name = $3, avatar_url = $4,
		    password_hash = $5, email_verified = $6, role = $7, is_active = $8,
		    updated_at = now()
		WHERE id = $9
	`
	result, err := queryTarget(ctx, r.pool).Exec(ctx, query,
		user.Email, user.Username, user.FullName, user.AvatarURL,
		user.PasswordHash, user.EmailVerified, user.Role, user.IsActive, user.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("unique constraint %s violated: %w", pgErr.ConstraintName, domainErrors.ErrDuplicateValue)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

// List returns a page of users ordered by creation time.
func (r *UserRepositoryPostgres) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at ASC
		OFFSET $1 LIMIT $2
	`
	rows, err := queryTarget(ctx, r.pool).Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Delete removes a user. Linked oauth_accounts rows go with it via the
// ON DELETE CASCADE foreign key.
func (r *UserRepositoryPostgres) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := queryTarget(ctx, r.pool).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepositoryPostgres)(nil)
