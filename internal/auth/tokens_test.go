package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trialdesk/trialdesk/internal/rbac"
	"github.com/trialdesk/trialdesk/internal/shared"
)

func testIssuer(t *testing.T, now func() time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "trialdesk",
		Audience:   "trialdesk-api",
		AccessTTL:  24 * time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	if now != nil {
		issuer.WithClock(now)
	}
	return issuer
}

func TestNewTokenIssuerRejectsShortSecret(t *testing.T) {
	_, err := NewTokenIssuer(TokenConfig{
		Secret:     []byte("short"),
		AccessTTL:  time.Hour,
		RefreshTTL: 2 * time.Hour,
	})
	require.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, func() time.Time { return now })

	user := &User{
		ID:             "u-1",
		Email:          "cra@site.example",
		Role:           rbac.RoleCRA,
		OrganizationID: "org-1",
	}
	raw, err := issuer.IssueAccess(user)
	require.NoError(t, err)

	claims, err := issuer.ParseAccess(raw)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.Subject)
	require.Equal(t, "cra@site.example", claims.Email)
	require.Equal(t, "cra", claims.Role)
	require.Equal(t, "org-1", claims.OrganizationID)
}

func TestAccessTokenExpires(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, func() time.Time { return now })

	raw, err := issuer.IssueAccess(&User{ID: "u-1", Role: rbac.RoleViewer})
	require.NoError(t, err)

	_, err = issuer.ParseAccess(raw)
	require.NoError(t, err)

	now = now.Add(24*time.Hour + time.Minute)
	_, err = issuer.ParseAccess(raw)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, func() time.Time { return now })

	raw, expiresAt, err := issuer.IssueRefresh("u-1", "tok-1")
	require.NoError(t, err)
	require.Equal(t, now.Add(7*24*time.Hour), expiresAt)

	claims, err := issuer.ParseRefresh(raw)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.Subject)
	require.Equal(t, "tok-1", claims.TokenID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := testIssuer(t, nil)
	other, err := NewTokenIssuer(TokenConfig{
		Secret:     []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:     "trialdesk",
		Audience:   "trialdesk-api",
		AccessTTL:  time.Hour,
		RefreshTTL: 2 * time.Hour,
	})
	require.NoError(t, err)

	raw, err := other.IssueAccess(&User{ID: "u-1"})
	require.NoError(t, err)

	_, err = issuer.ParseAccess(raw)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestParseRejectsWrongAudience(t *testing.T) {
	issuer := testIssuer(t, nil)
	other, err := NewTokenIssuer(TokenConfig{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "trialdesk",
		Audience:   "another-api",
		AccessTTL:  time.Hour,
		RefreshTTL: 2 * time.Hour,
	})
	require.NoError(t, err)

	raw, err := other.IssueAccess(&User{ID: "u-1"})
	require.NoError(t, err)

	_, err = issuer.ParseAccess(raw)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestParseAccessRejectsRefreshShapedGarbage(t *testing.T) {
	issuer := testIssuer(t, nil)
	_, err := issuer.ParseAccess("")
	require.ErrorIs(t, err, shared.ErrInvalidToken)
	_, err = issuer.ParseRefresh("header.payload.signature")
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	issuer := testIssuer(t, func() time.Time { return now })

	// Both kinds share secret, issuer and audience; the type claim is the
	// only thing separating them and each parser must enforce it.
	refresh, _, err := issuer.IssueRefresh("u-1", "tok-1")
	require.NoError(t, err)
	_, err = issuer.ParseAccess(refresh)
	require.ErrorIs(t, err, shared.ErrInvalidToken)

	access, err := issuer.IssueAccess(&User{ID: "u-1", Role: rbac.RoleViewer})
	require.NoError(t, err)
	_, err = issuer.ParseRefresh(access)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}
