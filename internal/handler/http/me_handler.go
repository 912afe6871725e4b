package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumenlabs/identity-service/internal/handler/http/middleware"
	"github.com/lumenlabs/identity-service/internal/service"
)

// MeHandler exposes the authenticated user's own profile.
type MeHandler struct {
	users  *service.UserService
	logger *zap.Logger
}

// NewMeHandler creates the /me endpoint handler.
func NewMeHandler(users *service.UserService, logger *zap.Logger) *MeHandler {
	return &MeHandler{
		users:  users,
		logger: logger.Named("me_handler"),
	}
}

// Get returns the authenticated user's profile.
// GET /api/v1/users/me
func (h *MeHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ResponseError{Error: "Authentication required", Code: "unauthorized"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

type updateProfileRequest struct {
	Username  *string `json:"username" binding:"omitempty,min=3,max=50,alphanum_underscore"`
	FullName  *string `json:"full_name" binding:"omitempty,max=255"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,uri,max=2048"`
}

// Update applies a partial profile update.
// PUT /api/v1/users/me
func (h *MeHandler) Update(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ResponseError{Error: "Authentication required", Code: "unauthorized"})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithValidationError(c, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, service.UpdateProfileInput{
		Username:  req.Username,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128"`
}

// ChangePassword sets or replaces the user's password credential. OAuth-only
// users may set a first password without presenting a current one.
// PUT /api/v1/users/me/password
func (h *MeHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ResponseError{Error: "Authentication required", Code: "unauthorized"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithValidationError(c, err)
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
