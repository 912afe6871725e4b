package errors

import (
	"errors"
	"fmt"
)

// General errors.
var (
	ErrInternal       = errors.New("internal error")
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("resource not found")
	ErrDuplicateValue = errors.New("duplicate value violates a uniqueness constraint")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
)

// User errors. ErrUserNotFound wraps ErrNotFound so callers that only care
// about the class can match either.
var (
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrEmailExists        = errors.New("email is already in use")
	ErrUsernameExists     = errors.New("username is already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is deactivated")
)

// Session token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// OAuth flow errors. Each one is a recoverable, user-facing failure; none of
// them should terminate the process.
var (
	ErrOAuthProviderNotFound    = errors.New("oauth provider not found or not enabled")
	ErrInvalidRedirectURI       = errors.New("redirect uri is not on the provider allow-list")
	ErrOAuthStateMalformed      = errors.New("oauth state is malformed")
	ErrOAuthStateTampered       = errors.New("oauth state signature mismatch")
	ErrOAuthStateExpired        = errors.New("oauth state has expired")
	ErrOAuthStateAlreadyUsed    = errors.New("oauth state has already been used")
	ErrOAuthProviderMismatch    = errors.New("oauth state was issued for a different provider")
	ErrOAuthProviderUnavailable = errors.New("oauth provider is unavailable")
	ErrOAuthExchangeRejected    = errors.New("oauth provider rejected the exchange")
)

// Account linking errors.
var (
	ErrAccountAlreadyLinked            = errors.New("user already has an account linked for this provider")
	ErrAccountAlreadyLinkedToOtherUser = errors.New("external account is already linked to another user")
	ErrAccountNotLinked                = errors.New("no account linked for this provider")
	ErrLastAuthMethod                  = errors.New("cannot remove the only remaining authentication method")
)

// IsInvalidOAuthState reports whether err is any of the state decode
// failures (malformed, tampered or expired). Callers that do not care which
// one occurred can use this to map all three to a single "restart the flow"
// response.
func IsInvalidOAuthState(err error) bool {
	return errors.Is(err, ErrOAuthStateMalformed) ||
		errors.Is(err, ErrOAuthStateTampered) ||
		errors.Is(err, ErrOAuthStateExpired)
}

// IsNotFound reports whether err is a "not found" class error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAccountNotLinked)
}

// IsConflict reports whether err is a conflict class error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateValue) ||
		errors.Is(err, ErrEmailExists) ||
		errors.Is(err, ErrUsernameExists) ||
		errors.Is(err, ErrAccountAlreadyLinked) ||
		errors.Is(err, ErrAccountAlreadyLinkedToOtherUser)
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken)
}
