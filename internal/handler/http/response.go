package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
)

// ResponseError is the error body returned by every endpoint.
type ResponseError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RespondWithError maps a domain error onto an HTTP status and error code.
// Internal details never leak: an unclassified error becomes a plain 500.
func RespondWithError(c *gin.Context, err error, logger *zap.Logger) {
	status, code, message := classify(err)

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Error(err))
		message = "Internal server error"
	}

	c.AbortWithStatusJSON(status, ResponseError{Error: message, Code: code})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, domainErrors.ErrOAuthProviderNotFound):
		return http.StatusNotFound, "provider_not_found", "OAuth provider is not supported"
	case errors.Is(err, domainErrors.ErrInvalidRedirectURI):
		return http.StatusBadRequest, "invalid_redirect_uri", "Redirect URI is not in the provider allow-list"
	case domainErrors.IsInvalidOAuthState(err):
		return http.StatusBadRequest, "invalid_state", "OAuth state is invalid or expired"
	case errors.Is(err, domainErrors.ErrOAuthStateAlreadyUsed):
		return http.StatusConflict, "state_already_used", "OAuth state has already been used"
	case errors.Is(err, domainErrors.ErrOAuthProviderMismatch):
		return http.StatusBadRequest, "provider_mismatch", "OAuth state was issued for a different provider"
	case errors.Is(err, domainErrors.ErrOAuthExchangeRejected):
		return http.StatusBadGateway, "exchange_rejected", "Provider rejected the authorization code"
	case errors.Is(err, domainErrors.ErrOAuthProviderUnavailable):
		return http.StatusBadGateway, "provider_unavailable", "OAuth provider is unavailable"
	case errors.Is(err, domainErrors.ErrAccountAlreadyLinkedToOtherUser):
		return http.StatusConflict, "account_linked_to_other_user", "This external account is linked to another user"
	case errors.Is(err, domainErrors.ErrAccountAlreadyLinked):
		return http.StatusConflict, "account_already_linked", "An account for this provider is already linked"
	case errors.Is(err, domainErrors.ErrAccountNotLinked):
		return http.StatusNotFound, "account_not_linked", "No account is linked for this provider"
	case errors.Is(err, domainErrors.ErrLastAuthMethod):
		return http.StatusConflict, "last_auth_method", "Cannot remove the only way to sign in to this account"
	case errors.Is(err, domainErrors.ErrEmailExists):
		return http.StatusConflict, "email_exists", "Email is already registered"
	case errors.Is(err, domainErrors.ErrUsernameExists):
		return http.StatusConflict, "username_exists", "Username is already taken"
	case errors.Is(err, domainErrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"
	case errors.Is(err, domainErrors.ErrUserInactive):
		return http.StatusForbidden, "user_inactive", "User is deactivated"
	case errors.Is(err, domainErrors.ErrExpiredToken):
		return http.StatusUnauthorized, "token_expired", "Token has expired"
	case errors.Is(err, domainErrors.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token", "Invalid token"
	case domainErrors.IsUnauthorized(err):
		return http.StatusUnauthorized, "unauthorized", "Authentication required"
	case errors.Is(err, domainErrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", "Access denied"
	case domainErrors.IsNotFound(err):
		return http.StatusNotFound, "not_found", "Resource not found"
	case domainErrors.IsConflict(err):
		return http.StatusConflict, "conflict", "Resource conflict"
	case errors.Is(err, domainErrors.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request", "Invalid request"
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error"
	}
}

// RespondWithValidationError reports a request-binding failure.
func RespondWithValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ResponseError{
		Error: err.Error(),
		Code:  "validation_error",
	})
}
