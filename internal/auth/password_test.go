package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	require.NoError(t, VerifyPassword(hash, "correct horse battery"))
	require.Error(t, VerifyPassword(hash, "wrong"))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	require.Error(t, err)
}

func TestVerifyPasswordRejectsEmptyHash(t *testing.T) {
	require.Error(t, VerifyPassword("", "anything"))
}

func TestRefreshTokenHashHandlesLongTokens(t *testing.T) {
	// Signed tokens exceed bcrypt's 72-byte input limit; the digest step
	// must keep the full token significant.
	token := strings.Repeat("a", 200)
	hash, err := HashRefreshToken(token)
	require.NoError(t, err)
	require.NoError(t, VerifyRefreshToken(hash, token))

	tampered := token[:199] + "b"
	require.Error(t, VerifyRefreshToken(hash, tampered))
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "cra@site.example", NormalizeEmail("  CRA@Site.Example "))
	// Unicode case folding, not plain lowercasing.
	require.Equal(t, "strasse@site.example", NormalizeEmail("STRAßE@site.example"))
}
