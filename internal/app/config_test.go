package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/trialdesk/trialdesk/internal/testing/guard"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "trialdesk", cfg.JWTIssuer)
	require.Equal(t, "trialdesk-api", cfg.JWTAudience)
	require.Equal(t, 24*time.Hour, cfg.AccessTTL)
	require.Equal(t, 168*time.Hour, cfg.RefreshTTL)
	require.Equal(t, 5*time.Minute, cfg.MFASetupTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt secret")
}

func TestLoadConfigRejectsInvertedTTLs(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ACCESS_TOKEN_TTL", "24h")
	t.Setenv("REFRESH_TOKEN_TTL", "1h")

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "refresh token ttl")
}

func TestInTestModeFollowsEnvironment(t *testing.T) {
	t.Cleanup(RefreshTestMode)

	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
