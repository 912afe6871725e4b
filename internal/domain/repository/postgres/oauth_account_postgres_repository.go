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

// OAuthAccountRepositoryPostgres implements repository.OAuthAccountRepository
// for PostgreSQL.
type OAuthAccountRepositoryPostgres struct {
	pool *pgxpool.Pool
}

// NewOAuthAccountRepositoryPostgres creates a new instance.
func NewOAuthAccountRepositoryPostgres(pool *pgxpool.Pool) *OAuthAccountRepositoryPostgres {
	return &OAuthAccountRepositoryPostgres{pool: pool}
}

const oauthAccountColumns = `id, user_id, provider, provider_user_id, provider_email,
       provider_name, provider_avatar_url, access_token, refresh_token,
       token_expires_at, provider_data, created_at, updated_at`

func scanOAuthAccount(row pgx.Row) (*models.OAuthAccount, error) {
	acc := &models.OAuthAccount{}
	err := row.Scan(
		&acc.ID, &acc.UserID, &acc.Provider, &acc.ProviderUserID, &acc.ProviderEmail,
		&acc.ProviderName, &acc.ProviderAvatarURL, &acc.AccessToken, &acc.RefreshToken,
		&acc.TokenExpiresAt, &acc.ProviderData, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan oauth account row: %w", err)
	}
	return acc, nil
}

// Create persists a new linked account. Unique violations are mapped so the
// caller can resolve concurrent-creation races: ErrDuplicateValue for the
// (provider, provider_user_id) pair, ErrAccountAlreadyLinked for the
// (user_id, provider) pair.
func (r *OAuthAccountRepositoryPostgres) Create(ctx context.Context, acc *models.OAuthAccount) error {
	query := `
		INSERT INTO oauth_accounts (id, user_id, provider, provider_user_id, provider_email,
		                            provider_name, provider_avatar_url, access_token, refresh_token,
		                            token_expires_at, provider_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := queryTarget(ctx, r.pool).QueryRow(ctx, query,
		acc.ID, acc.UserID, acc.Provider, acc.ProviderUserID, acc.ProviderEmail,
		acc.ProviderName, acc.ProviderAvatarURL, acc.AccessToken, acc.RefreshToken,
		acc.TokenExpiresAt, acc.ProviderData,
	).Scan(&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" {
				if strings.Contains(pgErr.ConstraintName, "user_id_provider") {
					return fmt.Errorf("user %s already linked to provider '%s': %w",
						acc.UserID, acc.Provider, domainErrors.ErrAccountAlreadyLinked)
				}
				return fmt.Errorf("external identity (%s, %s) already linked: %w",
					acc.Provider, acc.ProviderUserID, domainErrors.ErrDuplicateValue)
			}
			if pgErr.Code == "23503" {
				return fmt.Errorf("user %s not found for oauth account: %w", acc.UserID, domainErrors.ErrUserNotFound)
			}
		}
		return fmt.Errorf("failed to create oauth account: %w", err)
	}
	return nil
}

// FindByProviderUserID retrieves the account owning an external identity.
func (r *OAuthAccountRepositoryPostgres) FindByProviderUserID(ctx context.Context, provider, providerUserID string) (*models.OAuthAccount, error) {
	query := `SELECT ` + oauthAccountColumns + `
		FROM oauth_accounts WHERE provider = $1 AND provider_user_id = $2`
	return scanOAuthAccount(queryTarget(ctx, r.pool).QueryRow(ctx, query, provider, providerUserID))
}

// FindByUserID retrieves all linked accounts for a user ordered by provider.
func (r *OAuthAccountRepositoryPostgres) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*models.OAuthAccount, error) {
	query := `SELECT ` + oauthAccountColumns + `
		FROM oauth_accounts WHERE user_id = $1 ORDER BY provider`
	rows, err := queryTarget(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query oauth accounts by user id: %w", err)
	}
	defer rows.Close()

	var accounts []*models.OAuthAccount
	for rows.Next() {
		acc, err := scanOAuthAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating oauth account rows: %w", err)
	}
	return accounts, nil
}

// FindByUserIDAndProvider retrieves the user's linked account for a provider.
func (r *OAuthAccountRepositoryPostgres) FindByUserIDAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*models.OAuthAccount, error) {
	query := `SELECT ` + oauthAccountColumns + `
		FROM oauth_accounts WHERE user_id = $1 AND provider = $2`
	return scanOAuthAccount(queryTarget(ctx, r.pool).QueryRow(ctx, query, userID, provider))
}

// CountByUserID returns the number of linked accounts held by a user.
func (r *OAuthAccountRepositoryPostgres) CountByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := queryTarget(ctx, r.pool).QueryRow(ctx,
		`SELECT count(*) FROM oauth_accounts WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count oauth accounts: %w", err)
	}
	return count, nil
}

// Update refreshes token material and the profile snapshot. The provider,
// provider_user_id and user_id columns are immutable once created.
func (r *OAuthAccountRepositoryPostgres) Update(ctx context.Context, acc *models.OAuthAccount) error {
	query := `
		UPDATE oauth_accounts
		SET provider_email = $1, provider_name = $2, provider_avatar_url = $3,
		    access_token = $4, refresh_token = $5, token_expires_at = $6,
		    provider_data = $7, updated_at = now()
		WHERE id = $8
	`
	result, err := queryTarget(ctx, r.pool).Exec(ctx, query,
		acc.ProviderEmail, acc.ProviderName, acc.ProviderAvatarURL,
		acc.AccessToken, acc.RefreshToken, acc.TokenExpiresAt,
		acc.ProviderData, acc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update oauth account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

// DeleteByUserIDAndProvider removes the user's linked account for a provider.
func (r *OAuthAccountRepositoryPostgres) DeleteByUserIDAndProvider(ctx context.Context, userID uuid.UUID, provider string) error {
	result, err := queryTarget(ctx, r.pool).Exec(ctx,
		`DELETE FROM oauth_accounts WHERE user_id = $1 AND provider = $2`, userID, provider,
	)
	if err != nil {
		return fmt.Errorf("failed to delete oauth account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrAccountNotLinked
	}
	return nil
}

var _ repository.OAuthAccountRepository = (*OAuthAccountRepositoryPostgres)(nil)
