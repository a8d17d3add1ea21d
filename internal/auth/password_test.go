package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	for _, pwd := range []string{"password123", "correct horse battery staple", "ünïcødé-pässwörd"} {
		digest, err := h.Hash(pwd)
		require.NoError(t, err)
		assert.NotEqual(t, pwd, digest)
		assert.True(t, h.Verify(pwd, digest))
		assert.False(t, h.Verify(pwd+"x", digest))
	}
}

func TestHasherSalts(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, err := h.Hash("password123")
	require.NoError(t, err)
	b, err := h.Hash("password123")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewHasherFallsBackToDefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).Cost)
}
