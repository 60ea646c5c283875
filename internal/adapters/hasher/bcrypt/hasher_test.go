package bcrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("1234")
	require.NoError(t, err)

	assert.NotEqual(t, "1234", hash, "secret must not be stored as is")
	assert.True(t, h.Compare(hash, "1234"))
	assert.False(t, h.Compare(hash, "12345"))
	assert.False(t, h.Compare(hash, ""))
}

func TestHasher_SaltsEachHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("secret")
	require.NoError(t, err)
	second, err := h.Hash("secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Compare(first, "secret"))
	assert.True(t, h.Compare(second, "secret"))
}

func TestHasher_RejectsMalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	assert.False(t, h.Compare("", "anything"))
	assert.False(t, h.Compare("1234", "1234"), "a plaintext column value must never match")
}

func TestNewHasher_FallsBackToDefaultCost(t *testing.T) {
	h := NewHasher(0).(*Hasher)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)

	h = NewHasher(bcrypt.MaxCost + 1).(*Hasher)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
}
