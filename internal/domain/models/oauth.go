package models

import "time"

// OAuthToken carries provider tokens in a provider-agnostic format.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// OAuthUserInfo is the normalized profile returned by a provider's userinfo
// endpoint. Email may be empty and EmailVerified is the provider's own
// assertion; reconciliation treats anything else as untrusted.
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
}
