package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 10)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, 10, cost)

	assert.NoError(t, ComparePassword(hash, "s3cret-pass"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword("same", 10)
	require.NoError(t, err)
	b, err := HashPassword("same", 10)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword_RaisesLowCost(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 4)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, MinBcryptCost, cost)
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 73), 10)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestComparePassword_Mismatch(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 10)
	require.NoError(t, err)

	assert.ErrorIs(t, ComparePassword(hash, "wrong"), ErrPasswordMismatch)
	assert.ErrorIs(t, ComparePassword("not-a-hash", "s3cret-pass"), ErrPasswordMismatch)
}
