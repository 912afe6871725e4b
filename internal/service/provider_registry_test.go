package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/identity-service/internal/config"
	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
)

func testProviderConfigs() map[string]config.OAuthProviderConfig {
	return map[string]config.OAuthProviderConfig{
		"google": {
			Enabled:             true,
			ClientID:            "client",
			ClientSecret:        "secret",
			AllowedRedirectURIs: []string{"https://app.example.com/callback"},
		},
		"corp-sso": {
			Enabled:             true,
			ClientID:            "client",
			ClientSecret:        "secret",
			AuthURL:             "https://sso.corp.example.com/authorize",
			TokenURL:            "https://sso.corp.example.com/token",
			UserInfoURL:         "https://sso.corp.example.com/userinfo",
			Scopes:              []string{"openid"},
			AllowedRedirectURIs: []string{"https://app.example.com/callback"},
		},
		"disabled": {
			Enabled: false,
		},
	}
}

func TestProviderRegistry_GoogleDefaults(t *testing.T) {
	registry, err := NewProviderRegistry(testProviderConfigs())
	require.NoError(t, err)

	p, err := registry.Get("google")
	require.NoError(t, err)

	cfg := p.OAuth2Config("https://app.example.com/callback")
	assert.Equal(t, googleAuthURL, cfg.Endpoint.AuthURL)
	assert.Equal(t, googleTokenURL, cfg.Endpoint.TokenURL)
	assert.Equal(t, googleUserInfoURL, p.UserInfoURL())
	assert.Equal(t, []string{"openid", "email", "profile"}, cfg.Scopes)
}

func TestProviderRegistry_UnknownAndDisabled(t *testing.T) {
	registry, err := NewProviderRegistry(testProviderConfigs())
	require.NoError(t, err)

	_, err = registry.Get("github")
	assert.ErrorIs(t, err, domainErrors.ErrOAuthProviderNotFound)

	_, err = registry.Get("disabled")
	assert.ErrorIs(t, err, domainErrors.ErrOAuthProviderNotFound)
}

func TestProviderRegistry_MissingEndpoints(t *testing.T) {
	_, err := NewProviderRegistry(map[string]config.OAuthProviderConfig{
		"broken": {Enabled: true, ClientID: "c", ClientSecret: "s"},
	})
	require.Error(t, err)
}

func TestProviderRegistry_ListEnabled(t *testing.T) {
	registry, err := NewProviderRegistry(testProviderConfigs())
	require.NoError(t, err)
	assert.Equal(t, []string{"corp-sso", "google"}, registry.ListEnabled())
}

func TestProvider_AllowsRedirect(t *testing.T) {
	registry, err := NewProviderRegistry(testProviderConfigs())
	require.NoError(t, err)
	p, err := registry.Get("google")
	require.NoError(t, err)

	assert.True(t, p.AllowsRedirect("https://app.example.com/callback"))
	// Exact match only.
	assert.False(t, p.AllowsRedirect("https://app.example.com/callback/"))
	assert.False(t, p.AllowsRedirect("https://app.example.com/callback?x=1"))
	assert.False(t, p.AllowsRedirect("https://evil.example.com/callback"))
}

func TestProvider_NormalizeUserInfo_Google(t *testing.T) {
	registry, err := NewProviderRegistry(testProviderConfigs())
	require.NoError(t, err)
	p, err := registry.Get("google")
	require.NoError(t, err)

	info, err := p.NormalizeUserInfo([]byte(`{
		"id": "g-123",
		"email": "user@example.com",
		"verified_email": true,
		"name": "User Example",
		"picture": "https://lh3.example.com/photo.jpg"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "g-123", info.ProviderUserID)
	assert.Equal(t, "user@example.com", info.Email)
	assert.True(t, info.EmailVerified)
	assert.Equal(t, "User Example", info.Name)
	assert.Equal(t, "https://lh3.example.com/photo.jpg", info.AvatarURL)
}

func TestProvider_NormalizeUserInfo_OIDC(t *testing.T) {
	registry, err := NewProviderRegistry(testProviderConfigs())
	require.NoError(t, err)
	p, err := registry.Get("corp-sso")
	require.NoError(t, err)

	info, err := p.NormalizeUserInfo([]byte(`{
		"sub": "sso-9",
		"email": "user@corp.example.com",
		"email_verified": false,
		"name": "Corp User"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "sso-9", info.ProviderUserID)
	assert.False(t, info.EmailVerified)
}

func TestProvider_NormalizeUserInfo_MissingSubject(t *testing.T) {
	registry, err := NewProviderRegistry(testProviderConfigs())
	require.NoError(t, err)
	p, err := registry.Get("google")
	require.NoError(t, err)

	_, err = p.NormalizeUserInfo([]byte(`{"email": "user@example.com"}`))
	require.Error(t, err)
}
