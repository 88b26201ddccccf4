package studies

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialdesk/trialdesk/internal/shared"
)

// Repository provides data access for studies and their data queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListStudies returns a page of studies matching filters plus the total count.
func (r *Repository) ListStudies(ctx context.Context, filters ListFilters) ([]Study, int, error) {
	query := `SELECT id, protocol, title, sponsor, organization_id, phase, status, created_at, updated_at FROM studies WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM studies WHERE 1=1`
	args := []any{}
	countArgs := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (protocol ILIKE $` + strconv.Itoa(argCount) + ` OR title ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.Status != "" {
		argCount++
		clause := ` AND status = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filters.Status)
		countArgs = append(countArgs, filters.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("studies: count: %w", err)
	}

	page, perPage := shared.ClampPage(filters.Page, filters.PerPage)
	argCount++
	query += ` ORDER BY protocol LIMIT $` + strconv.Itoa(argCount)
	args = append(args, perPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("studies: list: %w", err)
	}
	defer rows.Close()

	var out []Study
	for rows.Next() {
		var s Study
		if err := rows.Scan(&s.ID, &s.Protocol, &s.Title, &s.Sponsor, &s.OrganizationID, &s.Phase, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("studies: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// GetStudy fetches one study by id.
func (r *Repository) GetStudy(ctx context.Context, id string) (*Study, error) {
	var s Study
	err := r.pool.QueryRow(ctx,
		`SELECT id, protocol, title, sponsor, organization_id, phase, status, created_at, updated_at FROM studies WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Protocol, &s.Title, &s.Sponsor, &s.OrganizationID, &s.Phase, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("studies: get: %w", err)
	}
	return &s, nil
}

// CreateStudy inserts a new study. Duplicate protocols surface as
// shared.ErrDuplicate.
func (r *Repository) CreateStudy(ctx context.Context, s Study) (*Study, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO studies (id, protocol, title, sponsor, organization_id, phase, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		s.ID, s.Protocol, s.Title, s.Sponsor, s.OrganizationID, s.Phase, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrDuplicate
		}
		return nil, fmt.Errorf("studies: create: %w", err)
	}
	return &s, nil
}

// ListOpenQueries returns unresolved data queries for a study.
func (r *Repository) ListOpenQueries(ctx context.Context, studyID string) ([]Query, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, study_id, subject_ref, field, question, status, raised_by, COALESCE(resolved_by, ''), COALESCE(resolution, ''), raised_at, resolved_at
		 FROM study_queries WHERE study_id = $1 AND status = 'open' ORDER BY raised_at`,
		studyID,
	)
	if err != nil {
		return nil, fmt.Errorf("studies: list queries: %w", err)
	}
	defer rows.Close()

	var out []Query
	for rows.Next() {
		var q Query
		if err := rows.Scan(&q.ID, &q.StudyID, &q.SubjectRef, &q.Field, &q.Question, &q.Status, &q.RaisedBy, &q.ResolvedBy, &q.Resolution, &q.RaisedAt, &q.ResolvedAt); err != nil {
			return nil, fmt.Errorf("studies: scan query: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// RaiseQuery records a new open data query.
func (r *Repository) RaiseQuery(ctx context.Context, q Query) (*Query, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO study_queries (id, study_id, subject_ref, field, question, status, raised_by)
		 VALUES ($1, $2, $3, $4, $5, 'open', $6)
		 RETURNING raised_at`,
		q.ID, q.StudyID, q.SubjectRef, q.Field, q.Question, q.RaisedBy,
	).Scan(&q.RaisedAt)
	if err != nil {
		return nil, fmt.Errorf("studies: raise query: %w", err)
	}
	q.Status = QueryOpen
	return &q, nil
}

// ResolveQuery closes an open query. Resolving an already resolved or missing
// query returns shared.ErrNotFound.
func (r *Repository) ResolveQuery(ctx context.Context, queryID, resolvedBy, resolution string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE study_queries SET status = 'resolved', resolved_by = $2, resolution = $3, resolved_at = NOW()
		 WHERE id = $1 AND status = 'open'`,
		queryID, resolvedBy, resolution,
	)
	if err != nil {
		return fmt.Errorf("studies: resolve query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
