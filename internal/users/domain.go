package users

import (
	"time"

	"github.com/trialdesk/trialdesk/internal/rbac"
)

// User is the management view of an account. Credential material is never
// exposed through this module.
type User struct {
	ID             string
	Email          string
	DisplayName    string
	Role           rbac.Role
	OrganizationID string
	Status         string
	MFAEnabled     bool
	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InviteParams describes a new account to provision.
type InviteParams struct {
	Email          string
	DisplayName    string
	Role           rbac.Role
	OrganizationID string
	Password       string
}
