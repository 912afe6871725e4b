package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumenlabs/identity-service/internal/handler/http/middleware"
	"github.com/lumenlabs/identity-service/internal/service"
)

// OAuthHandler exposes the identity-federation endpoints.
type OAuthHandler struct {
	oauth  *service.OAuthService
	tokens service.TokenIssuer
	logger *zap.Logger
}

// NewOAuthHandler creates the OAuth endpoint group handler.
func NewOAuthHandler(oauth *service.OAuthService, tokens service.TokenIssuer, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauth:  oauth,
		tokens: tokens,
		logger: logger.Named("oauth_handler"),
	}
}

type oauthLoginRequest struct {
	Provider    string `json:"provider" binding:"required"`
	RedirectURI string `json:"redirect_uri" binding:"required,uri"`
}

type oauthLoginResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// Login starts a federated login flow.
// POST /api/v1/oauth/login
func (h *OAuthHandler) Login(c *gin.Context) {
	var req oauthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithValidationError(c, err)
		return
	}

	authURL, state, err := h.oauth.InitiateOAuth(req.Provider, req.RedirectURI, nil)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, oauthLoginResponse{
		AuthorizationURL: authURL,
		State:            state,
	})
}

type oauthCallbackRequest struct {
	Provider string `json:"provider" form:"provider" binding:"required"`
	Code     string `json:"code" form:"code" binding:"required"`
	State    string `json:"state" form:"state" binding:"required"`
}

type oauthCallbackResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	IsNewUser   bool        `json:"is_new_user"`
	User        interface{} `json:"user"`
}

// Callback completes a federated login flow and issues a session token.
// GET|POST /api/v1/oauth/callback — GET serves the provider's browser
// redirect, POST serves frontends that relay the parameters themselves.
func (h *OAuthHandler) Callback(c *gin.Context) {
	var req oauthCallbackRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		RespondWithValidationError(c, err)
		return
	}

	user, _, created, err := h.oauth.HandleCallback(c.Request.Context(), req.Provider, req.Code, req.State)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	accessToken, err := h.tokens.GenerateAccessToken(user.ID)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, oauthCallbackResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		IsNewUser:   created,
		User:        user.ToResponse(),
	})
}

// Providers lists the enabled identity providers.
// GET /api/v1/oauth/providers
func (h *OAuthHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.oauth.ListProviders()})
}

type oauthLinkRequest struct {
	Provider    string `json:"provider" binding:"required"`
	RedirectURI string `json:"redirect_uri" binding:"required,uri"`
}

// Link starts an account-linking flow for the authenticated user.
// POST /api/v1/oauth/link
func (h *OAuthHandler) Link(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ResponseError{Error: "Authentication required", Code: "unauthorized"})
		return
	}

	var req oauthLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithValidationError(c, err)
		return
	}

	authURL, state, err := h.oauth.InitiateLink(c.Request.Context(), userID, req.Provider, req.RedirectURI)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, oauthLoginResponse{
		AuthorizationURL: authURL,
		State:            state,
	})
}

type oauthLinkCallbackRequest struct {
	Provider string `json:"provider" binding:"required"`
	Code     string `json:"code" binding:"required"`
	State    string `json:"state" binding:"required"`
}

// LinkCallback completes an account-linking flow.
// POST /api/v1/oauth/link/callback
func (h *OAuthHandler) LinkCallback(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ResponseError{Error: "Authentication required", Code: "unauthorized"})
		return
	}

	var req oauthLinkCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithValidationError(c, err)
		return
	}

	account, err := h.oauth.CompleteLink(c.Request.Context(), userID, req.Provider, req.Code, req.State)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account.Summary()})
}

// Unlink detaches a provider account from the authenticated user.
// DELETE /api/v1/oauth/unlink/:provider
func (h *OAuthHandler) Unlink(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ResponseError{Error: "Authentication required", Code: "unauthorized"})
		return
	}

	provider := c.Param("provider")
	if err := h.oauth.UnlinkAccount(c.Request.Context(), userID, provider); err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// UserComplete returns the authenticated user's profile together with their
// linked accounts in one response.
// GET /api/v1/oauth/user/complete
func (h *OAuthHandler) UserComplete(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ResponseError{Error: "Authentication required", Code: "unauthorized"})
		return
	}

	user, accounts, err := h.oauth.UserWithAccounts(c.Request.Context(), userID)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":           user.ToResponse(),
		"oauth_accounts": accounts,
	})
}

// Accounts lists the authenticated user's linked accounts.
// GET /api/v1/oauth/accounts
func (h *OAuthHandler) Accounts(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ResponseError{Error: "Authentication required", Code: "unauthorized"})
		return
	}

	accounts, err := h.oauth.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}
