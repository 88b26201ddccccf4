package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trialdesk/trialdesk/internal/auth"
	"github.com/trialdesk/trialdesk/internal/rbac"
	"github.com/trialdesk/trialdesk/internal/shared"
)

type memoryStore struct {
	users  map[string]*User
	hashes map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]*User), hashes: make(map[string]string)}
}

func (m *memoryStore) ListUsers(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memoryStore) CreateUser(_ context.Context, id, email, passwordHash, displayName string, role rbac.Role, organizationID string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return nil, shared.ErrDuplicate
		}
	}
	user := &User{
		ID:             id,
		Email:          email,
		DisplayName:    displayName,
		Role:           role,
		OrganizationID: organizationID,
		Status:         "invited",
	}
	m.users[id] = user
	m.hashes[id] = passwordHash
	copied := *user
	return &copied, nil
}

func (m *memoryStore) SetRole(_ context.Context, id string, role rbac.Role) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Role = role
	return nil
}

func (m *memoryStore) SetStatus(_ context.Context, id, status string) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Status = status
	return nil
}

func (m *memoryStore) SoftDelete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type recordingInvalidator struct {
	deleted []string
}

func (r *recordingInvalidator) Delete(_ context.Context, userID string) error {
	r.deleted = append(r.deleted, userID)
	return nil
}

type recordingRevoker struct {
	revoked []string
}

func (r *recordingRevoker) RevokeAllForUser(_ context.Context, userID string, _ time.Time) error {
	r.revoked = append(r.revoked, userID)
	return nil
}

type usersFixture struct {
	service  *Service
	store    *memoryStore
	sessions *recordingInvalidator
	revoker  *recordingRevoker
}

func newUsersFixture() *usersFixture {
	store := newMemoryStore()
	sessions := &recordingInvalidator{}
	revoker := &recordingRevoker{}
	return &usersFixture{
		service:  NewService(store, sessions, revoker, nil, nil, nil),
		store:    store,
		sessions: sessions,
		revoker:  revoker,
	}
}

func TestInviteCreatesInvitedUser(t *testing.T) {
	f := newUsersFixture()

	user, err := f.service.Invite(context.Background(), "admin-1", InviteParams{
		Email:       "New.CRA@Site.Example",
		DisplayName: "Dana Monitor",
		Role:        rbac.RoleCRA,
		Password:    "temporary passphrase",
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "new.cra@site.example", user.Email)
	require.Equal(t, "invited", user.Status)

	// The stored hash verifies against the invite password.
	require.NoError(t, auth.VerifyPassword(f.store.hashes[user.ID], "temporary passphrase"))
}

func TestInviteRejectsDuplicateEmail(t *testing.T) {
	f := newUsersFixture()
	params := InviteParams{
		Email:       "cra@site.example",
		DisplayName: "Dana Monitor",
		Role:        rbac.RoleCRA,
		Password:    "temporary passphrase",
	}

	_, err := f.service.Invite(context.Background(), "admin-1", params)
	require.NoError(t, err)

	_, err = f.service.Invite(context.Background(), "admin-1", params)
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestInviteRejectsUnknownRole(t *testing.T) {
	f := newUsersFixture()

	_, err := f.service.Invite(context.Background(), "admin-1", InviteParams{
		Email:       "cra@site.example",
		DisplayName: "Dana Monitor",
		Role:        rbac.Role("bogus"),
		Password:    "temporary passphrase",
	})
	require.Error(t, err)
}

func TestSetRoleBustsSessionCache(t *testing.T) {
	f := newUsersFixture()
	user, err := f.service.Invite(context.Background(), "admin-1", InviteParams{
		Email:       "cra@site.example",
		DisplayName: "Dana Monitor",
		Role:        rbac.RoleCRA,
		Password:    "temporary passphrase",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.SetRole(context.Background(), "admin-1", user.ID, rbac.RoleCoordinator))
	require.Equal(t, rbac.RoleCoordinator, f.store.users[user.ID].Role)
	require.Equal(t, []string{user.ID}, f.sessions.deleted)
	require.Empty(t, f.revoker.revoked)
}

func TestSuspendRevokesTokensAndSession(t *testing.T) {
	f := newUsersFixture()
	user, err := f.service.Invite(context.Background(), "admin-1", InviteParams{
		Email:       "cra@site.example",
		DisplayName: "Dana Monitor",
		Role:        rbac.RoleCRA,
		Password:    "temporary passphrase",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Suspend(context.Background(), "admin-1", user.ID))
	require.Equal(t, "suspended", f.store.users[user.ID].Status)
	require.Equal(t, []string{user.ID}, f.sessions.deleted)
	require.Equal(t, []string{user.ID}, f.revoker.revoked)
}

func TestDeleteRemovesUserAndCredentials(t *testing.T) {
	f := newUsersFixture()
	user, err := f.service.Invite(context.Background(), "admin-1", InviteParams{
		Email:       "cra@site.example",
		DisplayName: "Dana Monitor",
		Role:        rbac.RoleCRA,
		Password:    "temporary passphrase",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(context.Background(), "admin-1", user.ID))
	require.NotContains(t, f.store.users, user.ID)
	require.Equal(t, []string{user.ID}, f.sessions.deleted)
	require.Equal(t, []string{user.ID}, f.revoker.revoked)
}

func TestActivate(t *testing.T) {
	f := newUsersFixture()
	user, err := f.service.Invite(context.Background(), "admin-1", InviteParams{
		Email:       "cra@site.example",
		DisplayName: "Dana Monitor",
		Role:        rbac.RoleCRA,
		Password:    "temporary passphrase",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Activate(context.Background(), "admin-1", user.ID))
	require.Equal(t, "active", f.store.users[user.ID].Status)
}
