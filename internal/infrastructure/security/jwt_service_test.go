package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/identity-service/internal/config"
	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:         strings.Repeat("s", 32),
		Issuer:         "identity-service",
		Audience:       "identity-service",
		AccessTokenTTL: 30 * time.Minute,
	}
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService(testJWTConfig())
	require.NoError(t, err)

	userID := uuid.New()
	token, err := svc.GenerateAccessToken(userID)
	require.NoError(t, err)

	got, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestJWTService_RejectsShortSecret(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Secret = "short"
	_, err := NewJWTService(cfg)
	require.Error(t, err)
}

func TestJWTService_Expiry(t *testing.T) {
	svc, err := NewJWTService(testJWTConfig())
	require.NoError(t, err)

	issued := time.Now()
	svc.now = func() time.Time { return issued }
	token, err := svc.GenerateAccessToken(uuid.New())
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(31 * time.Minute) }
	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, domainErrors.ErrExpiredToken)
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	svc, err := NewJWTService(testJWTConfig())
	require.NoError(t, err)

	cfg := testJWTConfig()
	cfg.Secret = strings.Repeat("x", 32)
	other, err := NewJWTService(cfg)
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidToken)
}

func TestJWTService_RejectsWrongAudience(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Audience = "another-service"
	issuerSvc, err := NewJWTService(cfg)
	require.NoError(t, err)

	validator, err := NewJWTService(testJWTConfig())
	require.NoError(t, err)

	token, err := issuerSvc.GenerateAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = validator.ValidateAccessToken(token)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidToken)
}

func TestJWTService_RejectsUnsignedToken(t *testing.T) {
	svc, err := NewJWTService(testJWTConfig())
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    "identity-service",
		Audience:  jwt.ClaimStrings{"identity-service"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(unsigned)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidToken)
}

func TestJWTService_RejectsGarbage(t *testing.T) {
	svc, err := NewJWTService(testJWTConfig())
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken("not.a.jwt")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidToken)
}
