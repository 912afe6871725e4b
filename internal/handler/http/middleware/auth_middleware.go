package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
)

const (
	authHeaderKey  = "Authorization"
	authTypeBearer = "bearer"

	// GinContextUserIDKey is where the authenticated user's ID is stored.
	GinContextUserIDKey = "user_id"
)

// TokenValidator validates a bearer token and returns the subject user ID.
type TokenValidator interface {
	ValidateAccessToken(raw string) (uuid.UUID, error)
}

// AuthMiddleware authenticates requests with a Bearer access token and puts
// the user ID into the gin context.
func AuthMiddleware(tokens TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(authHeaderKey)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header is required",
				"code":  "unauthorized",
			})
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || strings.ToLower(scheme) != authTypeBearer {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header format must be 'Bearer <token>'",
				"code":  "unauthorized",
			})
			return
		}

		userID, err := tokens.ValidateAccessToken(token)
		if err != nil {
			logger.Warn("Rejected access token", zap.Error(err))
			msg, code := "Invalid token", "invalid_token"
			if errors.Is(err, domainErrors.ErrExpiredToken) {
				msg, code = "Token has expired", "token_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": msg,
				"code":  code,
			})
			return
		}

		c.Set(GinContextUserIDKey, userID)
		c.Next()
	}
}

// UserIDFromContext retrieves the authenticated user ID set by AuthMiddleware.
func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(GinContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
