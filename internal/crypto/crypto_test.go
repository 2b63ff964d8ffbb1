package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("32-byte-key-for-aes-encryption!!")

func TestSealer_SealOpen(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal("pi_123_secret_abc")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "pi_123_secret_abc")

	plaintext, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "pi_123_secret_abc", plaintext)
}

func TestSealer_FreshNonce(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	a, err := s.Seal("same")
	require.NoError(t, err)
	b, err := s.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_Tampered(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal("secret")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = s.Open(sealed)
	assert.Error(t, err)

	_, err = s.Open([]byte{1, 2})
	assert.Error(t, err)
}

func TestNewSealer_KeyLength(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	assert.ErrorIs(t, err, ErrKeyLength)
}
