package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
	"github.com/lumenlabs/identity-service/internal/domain/models"
	"github.com/lumenlabs/identity-service/internal/domain/repository"
)

const defaultExchangeTimeout = 5 * time.Second

// OAuthService implements the identity-federation flow: minting
// authorization requests, exchanging callbacks against the provider and
// reconciling the resulting external identity with the local account store.
type OAuthService struct {
	registry *ProviderRegistry
	codec    *StateCodec
	states   repository.StateConsumer
	users    repository.UserRepository
	accounts repository.OAuthAccountRepository
	tx       repository.TxManager
	events   EventPublisher
	logger   *zap.Logger

	httpClient      *http.Client
	exchangeTimeout time.Duration
}

// NewOAuthService wires the federation flow. events may be nil, in which
// case publishing is a no-op.
func NewOAuthService(
	registry *ProviderRegistry,
	codec *StateCodec,
	states repository.StateConsumer,
	users repository.UserRepository,
	accounts repository.OAuthAccountRepository,
	tx repository.TxManager,
	events EventPublisher,
	logger *zap.Logger,
	exchangeTimeout time.Duration,
) *OAuthService {
	if events == nil {
		events = NopPublisher{}
	}
	if exchangeTimeout <= 0 {
		exchangeTimeout = defaultExchangeTimeout
	}
	return &OAuthService{
		registry:        registry,
		codec:           codec,
		states:          states,
		users:           users,
		accounts:        accounts,
		tx:              tx,
		events:          events,
		logger:          logger.Named("oauth_service"),
		httpClient:      &http.Client{Timeout: exchangeTimeout},
		exchangeTimeout: exchangeTimeout,
	}
}

// InitiateOAuth validates the request against the provider configuration and
// returns the authorization URL together with the signed state bound to it.
// linkUserID is set when an already-authenticated user is linking an account
// rather than logging in. No network call is made.
func (s *OAuthService) InitiateOAuth(providerName, redirectURI string, linkUserID *uuid.UUID) (string, string, error) {
	provider, err := s.registry.Get(providerName)
	if err != nil {
		return "", "", err
	}
	if !provider.AllowsRedirect(redirectURI) {
		return "", "", fmt.Errorf("redirect uri %q: %w", redirectURI, domainErrors.ErrInvalidRedirectURI)
	}

	state, err := s.codec.Encode(StatePayload{
		Provider:    provider.Name,
		RedirectURI: redirectURI,
		Nonce:       uuid.NewString(),
		LinkUserID:  linkUserID,
	})
	if err != nil {
		return "", "", err
	}

	authURL := provider.OAuth2Config(redirectURI).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	s.logger.Info("OAuth flow initiated",
		zap.String("provider", provider.Name),
		zap.Bool("linking", linkUserID != nil))
	return authURL, state, nil
}

// ListProviders returns the enabled provider tags.
func (s *OAuthService) ListProviders() []string {
	return s.registry.ListEnabled()
}

// HandleCallback runs the callback leg of a login flow: state validation,
// one-shot code exchange, userinfo fetch and reconciliation. It returns the
// resolved local user, the linked-account snapshot and whether the user was
// created by this call.
func (s *OAuthService) HandleCallback(ctx context.Context, providerName, code, stateToken string) (*models.User, *models.OAuthAccount, bool, error) {
	return s.handleCallback(ctx, providerName, code, stateToken, nil)
}

func (s *OAuthService) handleCallback(ctx context.Context, providerName, code, stateToken string, requiredSubject *uuid.UUID) (*models.User, *models.OAuthAccount, bool, error) {
	payload, err := s.codec.Decode(stateToken)
	if err != nil {
		return nil, nil, false, err
	}
	if payload.Provider != providerName {
		return nil, nil, false, fmt.Errorf("state was issued for %q: %w",
			payload.Provider, domainErrors.ErrOAuthProviderMismatch)
	}
	if requiredSubject != nil &&
		(payload.LinkUserID == nil || *payload.LinkUserID != *requiredSubject) {
		return nil, nil, false, fmt.Errorf("state was not minted for this subject: %w",
			domainErrors.ErrOAuthStateMalformed)
	}

	provider, err := s.registry.Get(providerName)
	if err != nil {
		return nil, nil, false, err
	}

	// A state is single use even while its signature is still valid; marking
	// the nonce consumed before the exchange keeps two concurrent callbacks
	// from both reaching the provider.
	if err := s.states.Consume(ctx, payload.Nonce, s.codec.TTL()); err != nil {
		return nil, nil, false, err
	}

	token, err := s.exchangeCode(ctx, provider, code, payload.RedirectURI)
	if err != nil {
		return nil, nil, false, err
	}

	info, rawProfile, err := s.fetchUserInfo(ctx, provider, token.AccessToken)
	if err != nil {
		return nil, nil, false, err
	}

	var (
		user    *models.User
		account *models.OAuthAccount
		created bool
	)
	reconcileOnce := func(ctx context.Context) error {
		var rErr error
		user, account, created, rErr = s.reconcile(ctx, provider.Name, info, token, rawProfile, payload.LinkUserID)
		return rErr
	}
	err = s.tx.WithinTx(ctx, reconcileOnce)
	if errors.Is(err, domainErrors.ErrDuplicateValue) {
		// Another callback for the same external identity won the insert
		// race; re-running resolves it as a returning user.
		err = s.tx.WithinTx(ctx, reconcileOnce)
	}
	if err != nil {
		return nil, nil, false, err
	}

	// A deactivated account stays deactivated no matter how it signs in.
	if !user.IsActive {
		return nil, nil, false, fmt.Errorf("user %s: %w", user.ID, domainErrors.ErrUserInactive)
	}

	if created {
		s.events.PublishUserRegistered(ctx, UserRegisteredEvent{
			UserID:   user.ID,
			Email:    user.Email,
			Username: user.Username,
			AuthType: "oauth_" + provider.Name,
		})
	}
	s.events.PublishUserLoggedIn(ctx, UserLoggedInEvent{
		UserID:     user.ID,
		AuthMethod: "oauth_" + provider.Name,
	})

	s.logger.Info("OAuth callback handled",
		zap.String("provider", provider.Name),
		zap.String("user_id", user.ID.String()),
		zap.Bool("created", created))
	return user, account, created, nil
}

// exchangeCode trades the authorization code for provider tokens. The call
// is one-shot: an authorization code is single use upstream, so a failed
// exchange is never retried here.
func (s *OAuthService) exchangeCode(ctx context.Context, provider *Provider, code, redirectURI string) (*models.OAuthToken, error) {
	ctx, cancel := context.WithTimeout(ctx, s.exchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	token, err := provider.OAuth2Config(redirectURI).Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			s.logger.Warn("Token endpoint rejected the code",
				zap.String("provider", provider.Name),
				zap.Int("status", retrieveErr.Response.StatusCode))
			return nil, fmt.Errorf("token exchange rejected: %w", domainErrors.ErrOAuthExchangeRejected)
		}
		s.logger.Error("Token exchange failed",
			zap.String("provider", provider.Name), zap.Error(err))
		return nil, fmt.Errorf("token exchange failed: %w", domainErrors.ErrOAuthProviderUnavailable)
	}

	return &models.OAuthToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

// fetchUserInfo retrieves and normalizes the provider profile. A missing or
// unverified email is not an error; reconciliation treats it as untrusted.
func (s *OAuthService) fetchUserInfo(ctx context.Context, provider *Provider, accessToken string) (*models.OAuthUserInfo, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.exchangeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.UserInfoURL(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("Userinfo request failed",
			zap.String("provider", provider.Name), zap.Error(err))
		return nil, nil, fmt.Errorf("userinfo request failed: %w", domainErrors.ErrOAuthProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, nil, fmt.Errorf("userinfo endpoint returned %d: %w",
			resp.StatusCode, domainErrors.ErrOAuthProviderUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("userinfo endpoint returned %d: %w",
			resp.StatusCode, domainErrors.ErrOAuthExchangeRejected)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read userinfo response: %w", domainErrors.ErrOAuthProviderUnavailable)
	}

	info, err := provider.NormalizeUserInfo(raw)
	if err != nil {
		s.logger.Error("Unusable userinfo document",
			zap.String("provider", provider.Name), zap.Error(err))
		return nil, nil, fmt.Errorf("%v: %w", err, domainErrors.ErrOAuthProviderUnavailable)
	}
	return info, raw, nil
}
