package service

import (
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/oauth2"

	"github.com/lumenlabs/identity-service/internal/config"
	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/models"
)

// Well-known Google endpoints, used when the deployment config omits them.
const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Provider is the resolved, immutable configuration of one identity
// provider.
type Provider struct {
	Name string
	cfg  config.OAuthProviderConfig
}

// AllowsRedirect checks redirectURI against the provider allow-list. Exact
// match only; no wildcards.
func (p *Provider) AllowsRedirect(redirectURI string) bool {
	for _, allowed := range p.cfg.AllowedRedirectURIs {
		if allowed == redirectURI {
			return true
		}
	}
	return false
}

// OAuth2Config builds the oauth2 client config bound to a redirect URI. The
// redirect URI is per-request because a deployment may allow several.
func (p *Provider) OAuth2Config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       p.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.cfg.AuthURL,
			TokenURL: p.cfg.TokenURL,
		},
	}
}

// UserInfoURL returns the provider's userinfo endpoint.
func (p *Provider) UserInfoURL() string {
	return p.cfg.UserInfoURL
}

// NormalizeUserInfo maps the provider's raw userinfo document onto the
// normalized profile. Google has its own response shape; every other
// provider is assumed to follow standard OIDC claims, so new providers are
// configuration, not code.
func (p *Provider) NormalizeUserInfo(raw []byte) (*models.OAuthUserInfo, error) {
	var info *models.OAuthUserInfo
	switch p.Name {
	case "google":
		var u struct {
			ID            string `json:"id"`
			Email         string `json:"email"`
			VerifiedEmail bool   `json:"verified_email"`
			Name          string `json:"name"`
			Picture       string `json:"picture"`
		}
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("failed to decode google userinfo: %w", err)
		}
		info = &models.OAuthUserInfo{
			ProviderUserID: u.ID,
			Email:          u.Email,
			EmailVerified:  u.VerifiedEmail,
			Name:           u.Name,
			AvatarURL:      u.Picture,
		}
	default:
		var u struct {
			Sub           string `json:"sub"`
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
			Name          string `json:"name"`
			Picture       string `json:"picture"`
		}
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("failed to decode %s userinfo: %w", p.Name, err)
		}
		info = &models.OAuthUserInfo{
			ProviderUserID: u.Sub,
			Email:          u.Email,
			EmailVerified:  u.EmailVerified,
			Name:           u.Name,
			AvatarURL:      u.Picture,
		}
	}

	if info.ProviderUserID == "" {
		return nil, fmt.Errorf("%s userinfo is missing the subject identifier", p.Name)
	}
	return info, nil
}

// ProviderRegistry holds the per-deployment identity-provider configuration,
// resolved once at process start and read-only afterwards.
type ProviderRegistry struct {
	providers map[string]*Provider
}

// NewProviderRegistry builds the registry from config, filling in well-known
// endpoint defaults. Disabled providers are dropped.
func NewProviderRegistry(cfgs map[string]config.OAuthProviderConfig) (*ProviderRegistry, error) {
	providers := make(map[string]*Provider, len(cfgs))
	for name, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		if name == "google" {
			if cfg.AuthURL == "" {
				cfg.AuthURL = googleAuthURL
			}
			if cfg.TokenURL == "" {
				cfg.TokenURL = googleTokenURL
			}
			if cfg.UserInfoURL == "" {
				cfg.UserInfoURL = googleUserInfoURL
			}
			if len(cfg.Scopes) == 0 {
				cfg.Scopes = []string{"openid", "email", "profile"}
			}
		}
		if cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
			return nil, fmt.Errorf("oauth provider %q is missing endpoint configuration", name)
		}
		providers[name] = &Provider{Name: name, cfg: cfg}
	}
	return &ProviderRegistry{providers: providers}, nil
}

// Get resolves an enabled provider by tag.
func (r *ProviderRegistry) Get(name string) (*Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, domainErrors.ErrOAuthProviderNotFound)
	}
	return p, nil
}

// ListEnabled returns the enabled provider tags in stable order.
func (r *ProviderRegistry) ListEnabled() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
