package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialdesk/trialdesk/internal/platform/db"
	"github.com/trialdesk/trialdesk/internal/rbac"
	"github.com/trialdesk/trialdesk/internal/shared"
)

// Repository defines persistence operations for the auth module: the
// credential store and the refresh-token ledger.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	ChangePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	EnableMFA(ctx context.Context, id, secret string) error

	CreateRefreshToken(ctx context.Context, rec *RefreshTokenRecord) error
	FindRefreshToken(ctx context.Context, id string) (*RefreshTokenRecord, error)
	RevokeRefreshToken(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, password_hash, display_name, role, COALESCE(organization_id, ''), status, mfa_enabled, COALESCE(mfa_secret, ''), last_activity_at, created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (*User, error) {
	var user User
	var role string
	var status string
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&role,
		&user.OrganizationID,
		&status,
		&user.MFAEnabled,
		&user.MFASecret,
		&user.LastActivityAt,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user.Role = rbac.Role(role)
	user.Status = Status(status)
	return &user, nil
}

// FindByEmail fetches a user by case-folded email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, NormalizeEmail(email))
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateLastActivity records the most recent authentication time.
func (r *PGRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_activity_at = $2, updated_at = NOW() WHERE id = $1`, id, at.UTC())
	return err
}

// ChangePassword swaps the password hash and revokes every outstanding
// refresh token for the user in one transaction.
func (r *PGRepository) ChangePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, passwordHash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, id, at.UTC())
		return err
	})
}

// EnableMFA persists the TOTP secret and flips the MFA flag.
func (r *PGRepository) EnableMFA(ctx context.Context, id, secret string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET mfa_enabled = TRUE, mfa_secret = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, secret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateRefreshToken inserts one ledger row for an issued refresh token.
func (r *PGRepository) CreateRefreshToken(ctx context.Context, rec *RefreshTokenRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at) VALUES ($1, $2, $3, $4, NOW())`,
		rec.ID, rec.UserID, rec.TokenHash, rec.ExpiresAt.UTC())
	return err
}

// FindRefreshToken fetches a ledger row by token id.
func (r *PGRepository) FindRefreshToken(ctx context.Context, id string) (*RefreshTokenRecord, error) {
	var rec RefreshTokenRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at, revoked_at FROM refresh_tokens WHERE id = $1`, id).
		Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.ExpiresAt, &rec.CreatedAt, &rec.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// RevokeRefreshToken marks a ledger row revoked iff it is currently
// unrevoked. The conditional update is the serialization point for
// concurrent refresh attempts; the boolean reports whether this caller won.
func (r *PGRepository) RevokeRefreshToken(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeAllForUser revokes every live refresh token for a user.
func (r *PGRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, at.UTC())
	return err
}

var _ Repository = (*PGRepository)(nil)
