package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trialdesk/trialdesk/internal/auth"
	"github.com/trialdesk/trialdesk/internal/rbac"
	"github.com/trialdesk/trialdesk/internal/shared"
	"github.com/trialdesk/trialdesk/jobs"
)

// RepositoryPort defines data access methods for user management.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, id, email, passwordHash, displayName string, role rbac.Role, organizationID string) (*User, error)
	SetRole(ctx context.Context, id string, role rbac.Role) error
	SetStatus(ctx context.Context, id, status string) error
	SoftDelete(ctx context.Context, id string) error
}

// SessionInvalidator removes cached session entries when the underlying
// account record changes.
type SessionInvalidator interface {
	Delete(ctx context.Context, userID string) error
}

// TokenRevoker cuts off outstanding refresh tokens for an account.
type TokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

// Service handles user management business logic.
type Service struct {
	repo     RepositoryPort
	sessions SessionInvalidator
	tokens   TokenRevoker
	jobs     *jobs.Client
	audit    *shared.AuditLogger
	logger   *slog.Logger
}

// NewService builds a Service instance. The jobs client may be nil; invite
// emails are then skipped.
func NewService(repo RepositoryPort, sessions SessionInvalidator, tokens TokenRevoker, jobsClient *jobs.Client, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sessions: sessions, tokens: tokens, jobs: jobsClient, audit: audit, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// Invite provisions a new account in the invited state.
func (s *Service) Invite(ctx context.Context, actorID string, params InviteParams) (*User, error) {
	if !params.Role.Valid() {
		return nil, fmt.Errorf("users: unknown role %q", params.Role)
	}
	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.CreateUser(ctx, uuid.NewString(), auth.NormalizeEmail(params.Email), hash, params.DisplayName, params.Role, params.OrganizationID)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return nil, shared.ErrDuplicate
		}
		return nil, fmt.Errorf("users: create: %w", err)
	}
	s.sendInviteMail(ctx, user)
	s.recordAudit(ctx, actorID, "users.invited", user.ID, map[string]any{"role": string(params.Role)})
	return user, nil
}

func (s *Service) sendInviteMail(ctx context.Context, user *User) {
	if s.jobs == nil {
		return
	}
	_, err := s.jobs.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      user.Email,
		Subject: "You have been invited to TrialDesk",
		Body:    "Hello " + user.DisplayName + ", an account has been created for you. Sign in to activate it.",
	})
	if err != nil {
		s.logger.Warn("enqueue invite email", slog.String("user_id", user.ID), slog.Any("error", err))
	}
}

// SetRole updates the account role and busts the cached session so the new
// permission set takes effect on the next request instead of at TTL expiry.
func (s *Service) SetRole(ctx context.Context, actorID, userID string, role rbac.Role) error {
	if !role.Valid() {
		return fmt.Errorf("users: unknown role %q", role)
	}
	if err := s.repo.SetRole(ctx, userID, role); err != nil {
		return err
	}
	s.invalidateSession(ctx, userID)
	s.recordAudit(ctx, actorID, "users.role_changed", userID, map[string]any{"role": string(role)})
	return nil
}

// Activate switches an invited or suspended account to active.
func (s *Service) Activate(ctx context.Context, actorID, userID string) error {
	if err := s.repo.SetStatus(ctx, userID, string(auth.StatusActive)); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "users.activated", userID, nil)
	return nil
}

// Suspend blocks the account, busts any cached session and revokes all
// outstanding refresh tokens.
func (s *Service) Suspend(ctx context.Context, actorID, userID string) error {
	if err := s.repo.SetStatus(ctx, userID, string(auth.StatusSuspended)); err != nil {
		return err
	}
	s.invalidateSession(ctx, userID)
	s.revokeTokens(ctx, userID)
	s.recordAudit(ctx, actorID, "users.suspended", userID, nil)
	return nil
}

// Delete soft-deletes the account, busts any cached session and revokes all
// outstanding refresh tokens.
func (s *Service) Delete(ctx context.Context, actorID, userID string) error {
	if err := s.repo.SoftDelete(ctx, userID); err != nil {
		return err
	}
	s.invalidateSession(ctx, userID)
	s.revokeTokens(ctx, userID)
	s.recordAudit(ctx, actorID, "users.deleted", userID, nil)
	return nil
}

func (s *Service) revokeTokens(ctx context.Context, userID string) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID, time.Now().UTC()); err != nil {
		s.logger.Warn("revoke refresh tokens", slog.String("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) invalidateSession(ctx context.Context, userID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Delete(ctx, userID); err != nil {
		s.logger.Warn("invalidate session", slog.String("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: entityID,
		Meta:     meta,
		At:       time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
