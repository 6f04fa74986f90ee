package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, PasswordCorrect("correct horse", hash))
	assert.False(t, PasswordCorrect("wrong horse", hash))
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(16)
	require.NoError(t, err)
	b, err := GenerateToken(16)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 22)
	assert.Regexp(t, `^[A-Za-z0-9_-]+$`, a)
}
