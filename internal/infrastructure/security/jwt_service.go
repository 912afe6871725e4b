package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lumenlabs/identity-service/internal/config"
	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
)

// JWTService issues and validates HS256 access tokens. Token issuance is a
// collaborator of the OAuth subsystem, not part of it: callbacks and logins
// hand a resolved user ID to this service and get back a session credential.
type JWTService struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
	now       func() time.Time
}

// NewJWTService creates a JWTService from config. The secret length has
// already been validated at startup.
func NewJWTService(cfg config.JWTConfig) (*JWTService, error) {
	if len(cfg.Secret) < config.MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", config.MinSecretLength)
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &JWTService{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		accessTTL: ttl,
		now:       time.Now,
	}, nil
}

// GenerateAccessToken issues a signed access token for the user.
func (s *JWTService) GenerateAccessToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies the signature and standard claims and returns
// the subject user ID.
func (s *JWTService) ValidateAccessToken(raw string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, domainErrors.ErrExpiredToken
		}
		return uuid.Nil, domainErrors.ErrInvalidToken
	}
	if !token.Valid {
		return uuid.Nil, domainErrors.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domainErrors.ErrInvalidToken
	}
	return userID, nil
}
