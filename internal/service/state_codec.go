package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlabs/identity-service/internal/config"
	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
)

// DefaultStateTTL bounds how long an authorization state stays valid.
const DefaultStateTTL = 10 * time.Minute

// StatePayload binds an authorization request to its eventual callback. It
// travels through the provider as an opaque query parameter and is the only
// thing tying the two legs of the flow together.
type StatePayload struct {
	Provider    string     `json:"provider"`
	RedirectURI string     `json:"redirect_uri"`
	Nonce       string     `json:"nonce"`
	LinkUserID  *uuid.UUID `json:"link_user_id,omitempty"`
	IssuedAt    int64      `json:"iat"`
}

// StateCodec signs and verifies authorization states. Tokens have the form
// base64url(hmac-sha256(payload)) + "." + base64url(payload); the signature
// covers the exact payload bytes, so any mutation is a signature failure, not
// a misparse. Rotating the secret invalidates all in-flight states, which is
// acceptable given their short lifetime.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateCodec creates a codec for the given process-wide secret.
func NewStateCodec(secret string, ttl time.Duration) (*StateCodec, error) {
	if len(secret) < config.MinSecretLength {
		return nil, fmt.Errorf("state secret must be at least %d bytes", config.MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the configured state lifetime.
func (c *StateCodec) TTL() time.Duration {
	return c.ttl
}

// Encode stamps the payload with the issue time, signs it and encodes it for
// URL transport.
func (c *StateCodec) Encode(payload StatePayload) (string, error) {
	if payload.Nonce == "" {
		return "", fmt.Errorf("state payload requires a nonce")
	}
	payload.IssuedAt = c.now().Unix()

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize state payload: %w", err)
	}
	sig := c.sign(body)

	return base64.RawURLEncoding.EncodeToString(sig) + "." +
		base64.RawURLEncoding.EncodeToString(body), nil
}

// Decode verifies and opens a state token. Failure modes are distinct:
// ErrOAuthStateMalformed (not a token), ErrOAuthStateTampered (signature
// mismatch) and ErrOAuthStateExpired (older than the TTL).
func (c *StateCodec) Decode(token string) (StatePayload, error) {
	var payload StatePayload

	sigPart, bodyPart, ok := strings.Cut(token, ".")
	if !ok || sigPart == "" || bodyPart == "" {
		return payload, domainErrors.ErrOAuthStateMalformed
	}

	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return payload, domainErrors.ErrOAuthStateMalformed
	}
	body, err := base64.RawURLEncoding.DecodeString(bodyPart)
	if err != nil {
		return payload, domainErrors.ErrOAuthStateMalformed
	}

	if !hmac.Equal(sig, c.sign(body)) {
		return payload, domainErrors.ErrOAuthStateTampered
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return StatePayload{}, domainErrors.ErrOAuthStateMalformed
	}
	if payload.Nonce == "" || payload.Provider == "" {
		return StatePayload{}, domainErrors.ErrOAuthStateMalformed
	}

	issued := time.Unix(payload.IssuedAt, 0)
	if c.now().Sub(issued) > c.ttl {
		return StatePayload{}, domainErrors.ErrOAuthStateExpired
	}
	return payload, nil
}

func (c *StateCodec) sign(body []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(body)
	return mac.Sum(nil)
}
