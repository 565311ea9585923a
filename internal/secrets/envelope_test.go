package secrets

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomMasterKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealer_RoundTrip(t *testing.T) {
	sealer := NewSealer(randomMasterKey(t))

	sealed, err := sealer.Seal([]byte("sk-test-key-123"))
	require.NoError(t, err)
	assert.NotEmpty(t, sealed.Ciphertext)
	assert.Len(t, sealed.Nonce, 12)

	plaintext, err := sealer.Open(sealed.Ciphertext, sealed.Nonce, sealed.KeyVersion)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-key-123", string(plaintext))
}

func TestSealer_DifferentNoncesProduceDifferentCiphertext(t *testing.T) {
	sealer := NewSealer(randomMasterKey(t))

	a, err := sealer.Seal([]byte("same-plaintext"))
	require.NoError(t, err)
	b, err := sealer.Seal([]byte("same-plaintext"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestSealer_OpenFailsWithWrongMasterKey(t *testing.T) {
	sealer := NewSealer(randomMasterKey(t))
	sealed, err := sealer.Seal([]byte("secret"))
	require.NoError(t, err)

	other := NewSealer(randomMasterKey(t))
	_, err = other.Open(sealed.Ciphertext, sealed.Nonce, sealed.KeyVersion)
	assert.Error(t, err)
}

func TestSealer_OpenRejectsUnknownKeyVersion(t *testing.T) {
	sealer := NewSealer(randomMasterKey(t))
	sealed, err := sealer.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = sealer.Open(sealed.Ciphertext, sealed.Nonce, 99)
	assert.Error(t, err)
}
