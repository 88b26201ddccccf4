package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/trialdesk/trialdesk/internal/rbac"
	"github.com/trialdesk/trialdesk/internal/shared"
)

// PermissionResolver computes the effective permission set for a user.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID string, role rbac.Role) ([]string, error)
}

// LoginResult carries the outcome of a successful login.
type LoginResult struct {
	Principal *shared.Principal
	Tokens    *TokenPair
}

// Service wraps authentication business rules: login, refresh rotation,
// logout, password change and MFA enrollment.
type Service struct {
	repo     Repository
	tokens   *TokenIssuer
	sessions SessionStore
	setup    SetupStore
	totp     *TOTPManager
	resolver PermissionResolver
	audit    *shared.AuditLogger
	logger   *slog.Logger

	onLoginFailure func()

	group singleflight.Group
	now   func() time.Time
}

// ServiceConfig collects the collaborators for NewService.
type ServiceConfig struct {
	Repo     Repository
	Tokens   *TokenIssuer
	Sessions SessionStore
	Setup    SetupStore
	TOTP     *TOTPManager
	Resolver PermissionResolver
	Audit    *shared.AuditLogger
	Logger   *slog.Logger

	// OnLoginFailure is invoked for each rejected credential or MFA check.
	OnLoginFailure func()
}

// NewService constructs a new Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           cfg.Repo,
		tokens:         cfg.Tokens,
		sessions:       cfg.Sessions,
		setup:          cfg.Setup,
		totp:           cfg.TOTP,
		resolver:       cfg.Resolver,
		audit:          cfg.Audit,
		logger:         logger,
		onLoginFailure: cfg.OnLoginFailure,
		now:            time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Login validates credentials and, when required, the TOTP code, then issues
// a token pair. Unknown email, wrong password and non-active accounts are
// deliberately indistinguishable in the returned error.
func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (*LoginResult, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, s.loginRejected(shared.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	if !user.CanAuthenticate() {
		return nil, s.loginRejected(shared.ErrInvalidCredentials)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, s.loginRejected(shared.ErrInvalidCredentials)
	}
	if user.MFAEnabled {
		if mfaCode == "" {
			return nil, shared.ErrMFARequired
		}
		if !s.totp.Validate(user.MFASecret, mfaCode) {
			return nil, s.loginRejected(shared.ErrInvalidMFACode)
		}
	}

	principal, tokens, err := s.issueFor(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLastActivity(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("update last activity", slog.Any("error", err))
	}
	s.recordAudit(ctx, user.ID, "auth.login", "user", user.ID, nil)
	return &LoginResult{Principal: principal, Tokens: tokens}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair issued. Rotation is single-use; the conditional revoke in the ledger
// is the serialization point when two refreshes race.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(rawToken)
	if err != nil {
		return nil, shared.ErrInvalidToken
	}
	rec, err := s.repo.FindRefreshToken(ctx, claims.TokenID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidToken
		}
		return nil, fmt.Errorf("auth: find refresh token: %w", err)
	}
	if !rec.Usable(s.now()) || rec.UserID != claims.Subject {
		return nil, shared.ErrInvalidToken
	}
	if err := VerifyRefreshToken(rec.TokenHash, rawToken); err != nil {
		return nil, shared.ErrInvalidToken
	}

	revoked, err := s.repo.RevokeRefreshToken(ctx, rec.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("auth: revoke refresh token: %w", err)
	}
	if !revoked {
		// Another refresh won the race; this token is spent.
		return nil, shared.ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidToken
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	if !user.CanAuthenticate() {
		return nil, shared.ErrInvalidToken
	}

	_, tokens, err := s.issueFor(ctx, user)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, user.ID, "auth.refresh", "refresh_token", rec.ID, nil)
	return tokens, nil
}

// Logout revokes the presented refresh token. Failures are swallowed: the
// user-facing action must succeed regardless.
func (s *Service) Logout(ctx context.Context, rawToken string) {
	if rawToken == "" {
		return
	}
	claims, err := s.tokens.ParseRefresh(rawToken)
	if err != nil {
		return
	}
	if _, err := s.repo.RevokeRefreshToken(ctx, claims.TokenID, s.now()); err != nil {
		s.logger.Warn("logout revoke", slog.Any("error", err))
		return
	}
	s.recordAudit(ctx, claims.Subject, "auth.logout", "refresh_token", claims.TokenID, nil)
}

// ChangePassword verifies the current password, stores a new hash and
// revokes every outstanding refresh token for the user.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrInvalidCredentials
		}
		return fmt.Errorf("auth: find user: %w", err)
	}
	if err := VerifyPassword(user.PasswordHash, current); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.repo.ChangePassword(ctx, userID, hash, s.now()); err != nil {
		return fmt.Errorf("auth: change password: %w", err)
	}
	s.recordAudit(ctx, userID, "auth.password_changed", "user", userID, nil)
	return nil
}

// Authenticate resolves an access token into a principal. Cache hits avoid
// the credential store entirely; misses fall back to it and repopulate the
// cache, collapsed per user id so concurrent misses share one lookup.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*shared.Principal, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, shared.ErrInvalidToken
	}
	entry, err := s.sessions.Get(ctx, claims.Subject)
	if err != nil {
		s.logger.Warn("session cache read", slog.Any("error", err))
	}
	if entry != nil {
		principal := entry.Principal
		return &principal, nil
	}

	v, err, _ := s.group.Do(claims.Subject, func() (any, error) {
		return s.materializeSession(ctx, claims.Subject)
	})
	if err != nil {
		return nil, err
	}
	principal := v.(shared.Principal)
	return &principal, nil
}

// materializeSession rebuilds the session entry from the credential store.
func (s *Service) materializeSession(ctx context.Context, userID string) (shared.Principal, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Principal{}, shared.ErrInvalidToken
		}
		return shared.Principal{}, fmt.Errorf("auth: find user: %w", err)
	}
	if !user.CanAuthenticate() {
		return shared.Principal{}, shared.ErrInvalidToken
	}
	principal, err := s.buildPrincipal(ctx, user)
	if err != nil {
		return shared.Principal{}, err
	}
	if err := s.sessions.Set(ctx, user.ID, &SessionEntry{Principal: *principal, LastActivity: s.now()}); err != nil {
		s.logger.Warn("session cache write", slog.Any("error", err))
	}
	return *principal, nil
}

// BeginMFAEnrollment generates a secret and stages it pending verification.
func (s *Service) BeginMFAEnrollment(ctx context.Context, userID string) (*MFASetup, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	setup, err := s.totp.GenerateSetup(user.Email)
	if err != nil {
		return nil, fmt.Errorf("auth: generate totp secret: %w", err)
	}
	if err := s.setup.Stage(ctx, userID, setup.Secret); err != nil {
		return nil, fmt.Errorf("auth: stage mfa secret: %w", err)
	}
	return setup, nil
}

// VerifyMFAEnrollment commits the staged secret once the user proves
// possession. A wrong code leaves the staged secret in place for retry.
func (s *Service) VerifyMFAEnrollment(ctx context.Context, userID, code string) error {
	secret, err := s.setup.Peek(ctx, userID)
	if err != nil {
		return fmt.Errorf("auth: read staged secret: %w", err)
	}
	if secret == "" {
		return shared.ErrSetupSessionExpired
	}
	if !s.totp.Validate(secret, code) {
		return shared.ErrInvalidMFACode
	}
	if err := s.repo.EnableMFA(ctx, userID, secret); err != nil {
		return fmt.Errorf("auth: enable mfa: %w", err)
	}
	if err := s.setup.Discard(ctx, userID); err != nil {
		s.logger.Warn("discard staged secret", slog.Any("error", err))
	}
	s.recordAudit(ctx, userID, "auth.mfa_enabled", "user", userID, nil)
	return nil
}

// issueFor mints an access/refresh pair, writes the ledger row and refreshes
// the session cache entry for the user.
func (s *Service) issueFor(ctx context.Context, user *User) (*shared.Principal, *TokenPair, error) {
	principal, err := s.buildPrincipal(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	accessToken, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: sign access token: %w", err)
	}
	tokenID := uuid.NewString()
	refreshToken, expiresAt, err := s.tokens.IssueRefresh(user.ID, tokenID)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: sign refresh token: %w", err)
	}
	hash, err := HashRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: hash refresh token: %w", err)
	}
	if err := s.repo.CreateRefreshToken(ctx, &RefreshTokenRecord{
		ID:        tokenID,
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, nil, fmt.Errorf("auth: persist refresh token: %w", err)
	}

	if err := s.sessions.Set(ctx, user.ID, &SessionEntry{Principal: *principal, LastActivity: s.now()}); err != nil {
		s.logger.Warn("session cache write", slog.Any("error", err))
	}

	return principal, &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func (s *Service) buildPrincipal(ctx context.Context, user *User) (*shared.Principal, error) {
	perms, err := s.resolver.EffectivePermissions(ctx, user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve permissions: %w", err)
	}
	return &shared.Principal{
		ID:             user.ID,
		Email:          user.Email,
		DisplayName:    user.DisplayName,
		Role:           string(user.Role),
		OrganizationID: user.OrganizationID,
		Permissions:    perms,
	}, nil
}

func (s *Service) loginRejected(err error) error {
	if s.onLoginFailure != nil {
		s.onLoginFailure()
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
