package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GrantRepository defines persistence for per-user custom grants.
type GrantRepository interface {
	GrantsForUser(ctx context.Context, userID string) ([]Grant, error)
}

// PGGrantRepository implements GrantRepository using PostgreSQL.
type PGGrantRepository struct {
	pool *pgxpool.Pool
}

// NewGrantRepository constructs a PostgreSQL grant repository.
func NewGrantRepository(pool *pgxpool.Pool) *PGGrantRepository {
	return &PGGrantRepository{pool: pool}
}

// GrantsForUser returns all custom grant rows for a user.
func (r *PGGrantRepository) GrantsForUser(ctx context.Context, userID string) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, permissions FROM user_grants WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.UserID, &g.Permissions); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

var _ GrantRepository = (*PGGrantRepository)(nil)
