package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/models"
)

type stubUserLoader struct {
	user *models.User
	err  error
}

func (s stubUserLoader) GetByID(context.Context, uuid.UUID) (*models.User, error) {
	return s.user, s.err
}

func newRoleTestRouter(loader UserLoader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	subject := uuid.New()
	// Stands in for AuthMiddleware.
	router.Use(func(c *gin.Context) {
		c.Set(GinContextUserIDKey, subject)
		c.Next()
	})
	router.Use(RequireRole(loader, models.RoleAdmin, zap.NewNop()))
	router.GET("/admin", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func performAdminRequest(router *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireRole_AdminPasses(t *testing.T) {
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin, IsActive: true}
	w := performAdminRequest(newRoleTestRouter(stubUserLoader{user: admin}))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole_PlainUserForbidden(t *testing.T) {
	user := &models.User{ID: uuid.New(), Role: models.RoleUser, IsActive: true}
	w := performAdminRequest(newRoleTestRouter(stubUserLoader{user: user}))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "forbidden")
}

func TestRequireRole_DeactivatedAdminForbidden(t *testing.T) {
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin, IsActive: false}
	w := performAdminRequest(newRoleTestRouter(stubUserLoader{user: admin}))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "user_inactive")
}

func TestRequireRole_DeletedSubjectUnauthorized(t *testing.T) {
	w := performAdminRequest(newRoleTestRouter(stubUserLoader{err: domainErrors.ErrUserNotFound}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_token")
}

func TestRequireRole_MissingSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin, IsActive: true}
	router.Use(RequireRole(stubUserLoader{user: admin}, models.RoleAdmin, zap.NewNop()))
	router.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performAdminRequest(router)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
