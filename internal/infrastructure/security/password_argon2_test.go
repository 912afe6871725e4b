package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/identity-service/internal/config"
)

func testPasswordParams() config.PasswordConfig {
	// Small parameters to keep the test fast; production values come from
	// config defaults.
	return config.PasswordConfig{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestArgon2id_HashAndVerify(t *testing.T) {
	svc, err := NewArgon2idPasswordService(testPasswordParams())
	require.NoError(t, err)

	hash, err := svc.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := svc.CheckPasswordHash("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CheckPasswordHash("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2id_HashesAreSalted(t *testing.T) {
	svc, err := NewArgon2idPasswordService(testPasswordParams())
	require.NoError(t, err)

	h1, err := svc.HashPassword("same password")
	require.NoError(t, err)
	h2, err := svc.HashPassword("same password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestArgon2id_VerifiesWithEmbeddedParams(t *testing.T) {
	old, err := NewArgon2idPasswordService(testPasswordParams())
	require.NoError(t, err)
	hash, err := old.HashPassword("secret")
	require.NoError(t, err)

	// A service configured with different parameters still verifies hashes
	// created under the old ones.
	params := testPasswordParams()
	params.Memory = 16 * 1024
	params.Iterations = 2
	current, err := NewArgon2idPasswordService(params)
	require.NoError(t, err)

	ok, err := current.CheckPasswordHash("secret", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArgon2id_RejectsMalformedHash(t *testing.T) {
	svc, err := NewArgon2idPasswordService(testPasswordParams())
	require.NoError(t, err)

	for _, bad := range []string{
		"",
		"plainhash",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	} {
		_, err := svc.CheckPasswordHash("x", bad)
		assert.Errorf(t, err, "hash %q", bad)
	}
}

func TestArgon2id_RejectsIncompleteParams(t *testing.T) {
	params := testPasswordParams()
	params.KeyLength = 0
	_, err := NewArgon2idPasswordService(params)
	require.Error(t, err)
}
