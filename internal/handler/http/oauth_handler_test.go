package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumenlabs/identity-service/internal/config"
	memoryRepo "github.com/lumenlabs/identity-service/internal/domain/repository/memory"
	"github.com/lumenlabs/identity-service/internal/service"
)

const testRedirectURI = "https://app.example.com/callback"

type stubIssuer struct{}

func (stubIssuer) GenerateAccessToken(uuid.UUID) (string, error) { return "token", nil }
func (stubIssuer) ValidateAccessToken(string) (uuid.UUID, error) { return uuid.New(), nil }

// newInitiationRouter wires an OAuthService deep enough for the request legs
// that never touch storage: login initiation and provider listing.
func newInitiationRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := service.NewProviderRegistry(map[string]config.OAuthProviderConfig{
		"google": {
			Enabled:             true,
			ClientID:            "client",
			ClientSecret:        "secret",
			AllowedRedirectURIs: []string{testRedirectURI},
		},
	})
	require.NoError(t, err)

	codec, err := service.NewStateCodec(strings.Repeat("k", 32), 10*time.Minute)
	require.NoError(t, err)

	oauthSvc := service.NewOAuthService(
		registry, codec, memoryRepo.NewStateConsumer(),
		nil, nil, nil, nil, zap.NewNop(), 5*time.Second,
	)
	handler := NewOAuthHandler(oauthSvc, stubIssuer{}, zap.NewNop())

	router := gin.New()
	router.POST("/api/v1/oauth/login", handler.Login)
	router.GET("/api/v1/oauth/providers", handler.Providers)
	return router
}

func TestOAuthLogin(t *testing.T) {
	router := newInitiationRouter(t)

	body := `{"provider":"google","redirect_uri":"` + testRedirectURI + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/oauth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "authorization_url")
	assert.Contains(t, w.Body.String(), "state")
}

func TestOAuthLogin_MissingFields(t *testing.T) {
	router := newInitiationRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/oauth/login", strings.NewReader(`{"provider":"google"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestOAuthLogin_UnknownProvider(t *testing.T) {
	router := newInitiationRouter(t)

	body := `{"provider":"github","redirect_uri":"` + testRedirectURI + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/oauth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "provider_not_found")
}

func TestOAuthLogin_DisallowedRedirect(t *testing.T) {
	router := newInitiationRouter(t)

	body := `{"provider":"google","redirect_uri":"https://evil.example.com/cb"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/oauth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_redirect_uri")
}

func TestOAuthProviders(t *testing.T) {
	router := newInitiationRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/providers", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"providers":["google"]}`, w.Body.String())
}
