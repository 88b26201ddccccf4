package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialdesk/trialdesk/internal/rbac"
	"github.com/trialdesk/trialdesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for user management.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const listColumns = `id, email, display_name, role, COALESCE(organization_id, ''), status, mfa_enabled, last_activity_at, created_at, updated_at`

// ListUsers returns all non-deleted users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+listColumns+` FROM users WHERE deleted_at IS NULL ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []User
	for rows.Next() {
		var user User
		var role string
		if err := rows.Scan(&user.ID, &user.Email, &user.DisplayName, &role, &user.OrganizationID, &user.Status, &user.MFAEnabled, &user.LastActivityAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		user.Role = rbac.Role(role)
		accounts = append(accounts, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// CreateUser inserts a provisioned account. A duplicate email surfaces as
// shared.ErrDuplicate via the unique-violation code.
func (r *Repository) CreateUser(ctx context.Context, id, email, passwordHash, displayName string, role rbac.Role, organizationID string) (*User, error) {
	var orgParam any
	if organizationID != "" {
		orgParam = organizationID
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, role, organization_id, status, mfa_enabled, last_activity_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 'invited', FALSE, NOW(), NOW(), NOW())
		 RETURNING `+listColumns,
		id, email, passwordHash, displayName, string(role), orgParam)
	var user User
	var roleValue string
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &roleValue, &user.OrganizationID, &user.Status, &user.MFAEnabled, &user.LastActivityAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrDuplicate
		}
		return nil, err
	}
	user.Role = rbac.Role(roleValue)
	return &user, nil
}

// SetRole updates the account role.
func (r *Repository) SetRole(ctx context.Context, id string, role rbac.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetStatus updates the account lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, id, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SoftDelete marks the account deleted without removing the row.
func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
