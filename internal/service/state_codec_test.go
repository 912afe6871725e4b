package service

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/lumenlabs/identity-service/internal/domain/errors"
)

const testStateSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *StateCodec {
	t.Helper()
	codec, err := NewStateCodec(testStateSecret, 10*time.Minute)
	require.NoError(t, err)
	return codec
}

func TestStateCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	linkID := uuid.New()

	token, err := codec.Encode(StatePayload{
		Provider:    "google",
		RedirectURI: "https://app.example.com/callback",
		Nonce:       "nonce-1",
		LinkUserID:  &linkID,
	})
	require.NoError(t, err)

	payload, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "google", payload.Provider)
	assert.Equal(t, "https://app.example.com/callback", payload.RedirectURI)
	assert.Equal(t, "nonce-1", payload.Nonce)
	require.NotNil(t, payload.LinkUserID)
	assert.Equal(t, linkID, *payload.LinkUserID)
	assert.NotZero(t, payload.IssuedAt)
}

func TestStateCodec_RejectsShortSecret(t *testing.T) {
	_, err := NewStateCodec("too-short", time.Minute)
	require.Error(t, err)
}

func TestStateCodec_RequiresNonce(t *testing.T) {
	codec := newTestCodec(t)
	_, err := codec.Encode(StatePayload{Provider: "google"})
	require.Error(t, err)
}

func TestStateCodec_Expiry(t *testing.T) {
	codec := newTestCodec(t)
	issued := time.Now()
	codec.now = func() time.Time { return issued }

	token, err := codec.Encode(StatePayload{Provider: "google", Nonce: "n"})
	require.NoError(t, err)

	codec.now = func() time.Time { return issued.Add(9 * time.Minute) }
	_, err = codec.Decode(token)
	require.NoError(t, err)

	codec.now = func() time.Time { return issued.Add(11 * time.Minute) }
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, domainErrors.ErrOAuthStateExpired)
}

func TestStateCodec_TamperedBody(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Encode(StatePayload{Provider: "google", Nonce: "n"})
	require.NoError(t, err)

	sigPart, bodyPart, ok := strings.Cut(token, ".")
	require.True(t, ok)

	body, err := base64.RawURLEncoding.DecodeString(bodyPart)
	require.NoError(t, err)

	// Flip one byte anywhere in the payload.
	body[len(body)/2] ^= 0x01
	tampered := sigPart + "." + base64.RawURLEncoding.EncodeToString(body)

	_, err = codec.Decode(tampered)
	assert.ErrorIs(t, err, domainErrors.ErrOAuthStateTampered)
}

func TestStateCodec_TamperedSignature(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Encode(StatePayload{Provider: "google", Nonce: "n"})
	require.NoError(t, err)

	sigPart, bodyPart, ok := strings.Cut(token, ".")
	require.True(t, ok)

	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	require.NoError(t, err)
	sig[0] ^= 0x01

	_, err = codec.Decode(base64.RawURLEncoding.EncodeToString(sig) + "." + bodyPart)
	assert.ErrorIs(t, err, domainErrors.ErrOAuthStateTampered)
}

func TestStateCodec_WrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewStateCodec(strings.Repeat("x", 32), 10*time.Minute)
	require.NoError(t, err)

	token, err := codec.Encode(StatePayload{Provider: "google", Nonce: "n"})
	require.NoError(t, err)

	_, err = other.Decode(token)
	assert.ErrorIs(t, err, domainErrors.ErrOAuthStateTampered)
}

func TestStateCodec_Malformed(t *testing.T) {
	codec := newTestCodec(t)

	for _, token := range []string{
		"",
		"no-dot-at-all",
		".",
		"only-sig.",
		".only-body",
		"!!!.!!!",
		"c2ln.bm90LWpzb24", // valid base64, body is not JSON (also fails hmac first)
	} {
		_, err := codec.Decode(token)
		assert.Truef(t, domainErrors.IsInvalidOAuthState(err), "token %q: got %v", token, err)
	}
}
