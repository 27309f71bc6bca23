package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Abcdef12", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "Abcdef12", hash)

	ok, err := VerifyPassword("Abcdef12", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("abcdef12", hash)
	require.NoError(t, err)
	assert.False(t, ok, "case must matter")
}

func TestHashPasswordRejectsBadInput(t *testing.T) {
	_, err := HashPassword("", 4)
	assert.Error(t, err)
	_, err = HashPassword("Abcdef12", 2)
	assert.Error(t, err)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	ok, err := VerifyPassword("Abcdef12", "not-a-hash")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrInvalidHash))
}

func TestValidateStrength(t *testing.T) {
	assert.NoError(t, ValidateStrength("Abcdef12"))

	err := ValidateStrength("short")
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "at least 8 characters"))
	assert.True(t, strings.Contains(msg, "uppercase"))
	assert.True(t, strings.Contains(msg, "digit"))
	assert.False(t, strings.Contains(msg, "lowercase"))

	assert.Error(t, ValidateStrength("ABCDEFGH1"))
	assert.Error(t, ValidateStrength("Abcdefgh"))
}

func TestBurnCompareDoesNotPanic(t *testing.T) {
	BurnCompare("anything")
	BurnCompare("")
}
