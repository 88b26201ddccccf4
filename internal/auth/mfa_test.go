package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestGenerateSetupProducesScannableMaterial(t *testing.T) {
	manager := NewTOTPManager("TrialDesk", 1)

	setup, err := manager.GenerateSetup("cra@site.example")
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.OTPAuthURL, "otpauth://totp/")
	require.Contains(t, setup.OTPAuthURL, "TrialDesk")
	require.Contains(t, setup.QRCode, "data:image/png;base64,")
}

func TestValidateAcceptsAdjacentStep(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	manager := NewTOTPManager("TrialDesk", 1).WithClock(func() time.Time { return now })

	// A code from the previous 30s step is inside the skew window.
	code, err := totp.GenerateCode(testSecret, now.Add(-30*time.Second))
	require.NoError(t, err)
	require.True(t, manager.Validate(testSecret, code))
}

func TestValidateRejectsStaleCode(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	manager := NewTOTPManager("TrialDesk", 1).WithClock(func() time.Time { return now })

	code, err := totp.GenerateCode(testSecret, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.False(t, manager.Validate(testSecret, code))
}

func TestValidateTrimsWhitespace(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	manager := NewTOTPManager("TrialDesk", 1).WithClock(func() time.Time { return now })

	code, err := totp.GenerateCode(testSecret, now)
	require.NoError(t, err)
	require.True(t, manager.Validate(testSecret, " "+code+" "))
}

func TestFormatManualEntryKey(t *testing.T) {
	require.Equal(t, "JBSW Y3DP EHPK 3PXP", formatManualEntryKey("JBSWY3DPEHPK3PXP"))
}

func TestSetupStoreStageAndExpire(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSetupStore(client, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Stage(ctx, "u-1", testSecret))

	secret, err := store.Peek(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, testSecret, secret)

	mr.FastForward(5*time.Minute + time.Second)

	secret, err = store.Peek(ctx, "u-1")
	require.NoError(t, err)
	require.Empty(t, secret)
}

func TestSetupStoreDiscard(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewSetupStore(client, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Stage(ctx, "u-1", testSecret))
	require.NoError(t, store.Discard(ctx, "u-1"))
	require.NoError(t, store.Discard(ctx, "u-1"))

	secret, err := store.Peek(ctx, "u-1")
	require.NoError(t, err)
	require.Empty(t, secret)
}
