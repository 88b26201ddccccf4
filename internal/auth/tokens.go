package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trialdesk/trialdesk/internal/shared"
)

// TokenConfig holds signing parameters for issued tokens.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Token type claim values. Both token kinds share secret, issuer and
// audience, so the type claim is what keeps a refresh token from passing as
// a bearer access token.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AccessClaims are the claims carried by access tokens.
type AccessClaims struct {
	TokenType      string `json:"token_type"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims are the claims carried by refresh tokens. TokenID matches
// the ledger row created for the token.
type RefreshClaims struct {
	TokenType string `json:"token_type"`
	TokenID   string `json:"tid"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies signed access and refresh tokens.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("auth: signing secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}, nil
}

// WithClock overrides the time source, for tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

// AccessTTL exposes the configured access token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.cfg.AccessTTL
}

// RefreshTTL exposes the configured refresh token lifetime.
func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.cfg.RefreshTTL
}

// IssueAccess mints a signed access token for the user.
func (i *TokenIssuer) IssueAccess(user *User) (string, error) {
	now := i.now()
	claims := AccessClaims{
		TokenType:      tokenTypeAccess,
		Email:          user.Email,
		Role:           string(user.Role),
		OrganizationID: user.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
}

// IssueRefresh mints a signed refresh token bound to a ledger row id.
func (i *TokenIssuer) IssueRefresh(userID, tokenID string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.cfg.RefreshTTL)
	claims := RefreshClaims{
		TokenType: tokenTypeRefresh,
		TokenID:   tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseAccess verifies an access token's signature, expiry, issuer, audience
// and token type. Any failure collapses into ErrInvalidToken.
func (i *TokenIssuer) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.TokenType != tokenTypeAccess {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (i *TokenIssuer) ParseRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.TokenID == "" || claims.TokenType != tokenTypeRefresh {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

func (i *TokenIssuer) parse(raw string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, shared.ErrInvalidToken
		}
		return i.cfg.Secret, nil
	},
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return shared.ErrInvalidToken
	}
	return nil
}
