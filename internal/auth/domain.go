package auth

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/trialdesk/trialdesk/internal/rbac"
)

// Status describes the lifecycle state of a user account.
type Status string

const (
	// StatusActive allows authentication.
	StatusActive Status = "active"
	// StatusInvited is a provisioned account that has not activated yet.
	StatusInvited Status = "invited"
	// StatusSuspended blocks authentication without deleting the record.
	StatusSuspended Status = "suspended"
)

// User represents an authenticated user account. Accounts are never hard
// deleted; DeletedAt marks soft deletion.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	DisplayName    string
	Role           rbac.Role
	OrganizationID string
	Status         Status
	MFAEnabled     bool
	MFASecret      string
	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// CanAuthenticate reports whether the account may authenticate at all.
// Suspended, invited and soft-deleted accounts authenticate for nothing.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.Status == StatusActive && u.DeletedAt == nil
}

// RefreshTokenRecord is one ledger row per issued refresh token. The raw
// token is never stored, only its hash.
type RefreshTokenRecord struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Usable reports whether the record can still mint new tokens.
func (r *RefreshTokenRecord) Usable(now time.Time) bool {
	return r != nil && r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// TokenPair is the issued credential pair returned to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

var emailFolder = cases.Fold()

// NormalizeEmail lowercases an email address via Unicode case folding so
// lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return emailFolder.String(strings.TrimSpace(email))
}
