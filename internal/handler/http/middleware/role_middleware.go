package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/models"
)

// UserLoader resolves the authenticated subject to its user record.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RequireRole guards a route group behind a role. It must run after
// AuthMiddleware: the subject is loaded from the store on every request, so
// a deactivation or demotion takes effect immediately rather than at token
// expiry.
func RequireRole(users UserLoader, role string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "unauthorized",
			})
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if domainErrors.IsNotFound(err) {
				// The token outlived its user.
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid token",
					"code":  "invalid_token",
				})
				return
			}
			logger.Error("Failed to load user for role check",
				zap.String("user_id", userID.String()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
				"code":  "internal_error",
			})
			return
		}

		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "User is deactivated",
				"code":  "user_inactive",
			})
			return
		}

		if user.Role != role {
			logger.Warn("Rejected request lacking required role",
				zap.String("user_id", userID.String()),
				zap.String("user_role", user.Role),
				zap.String("required_role", role))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Access denied: insufficient permissions",
				"code":  "forbidden",
			})
			return
		}

		c.Next()
	}
}
