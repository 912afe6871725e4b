package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenlabs/identity-service/internal/domain/models"
	"github.com/lumenlabs/identity-service/internal/service"
)

// AdminHandler exposes user administration. Every route is behind the admin
// role guard in the router.
type AdminHandler struct {
	users  *service.UserService
	logger *zap.Logger
}

// NewAdminHandler creates the admin endpoint group handler.
func NewAdminHandler(users *service.UserService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		users:  users,
		logger: logger.Named("admin_handler"),
	}
}

// List returns a page of users.
// GET /api/v1/admin/users?skip=0&limit=100
func (h *AdminHandler) List(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	users, err := h.users.ListUsers(c.Request.Context(), skip, limit)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	responses := make([]*models.UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, user.ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"users": responses})
}

// GetByID returns a single user.
// GET /api/v1/admin/users/:user_id
func (h *AdminHandler) GetByID(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		RespondWithValidationError(c, err)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

type adminUpdateUserRequest struct {
	Username  *string `json:"username" binding:"omitempty,min=3,max=50,alphanum_underscore"`
	FullName  *string `json:"full_name" binding:"omitempty,max=255"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,uri,max=2048"`
	Role      *string `json:"role" binding:"omitempty,oneof=user admin"`
	IsActive  *bool   `json:"is_active"`
}

// Update applies an administrative update, including role and activation
// changes.
// PUT /api/v1/admin/users/:user_id
func (h *AdminHandler) Update(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		RespondWithValidationError(c, err)
		return
	}

	var req adminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithValidationError(c, err)
		return
	}

	user, err := h.users.AdminUpdateUser(c.Request.Context(), userID, service.AdminUpdateInput{
		Username:  req.Username,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
		Role:      req.Role,
		IsActive:  req.IsActive,
	})
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// Delete removes a user and their linked accounts.
// DELETE /api/v1/admin/users/:user_id
func (h *AdminHandler) Delete(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		RespondWithValidationError(c, err)
		return
	}

	if err := h.users.DeleteUser(c.Request.Context(), userID); err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
