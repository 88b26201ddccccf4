package studies

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trialdesk/trialdesk/internal/shared"
)

// RepositoryPort defines data access methods for studies.
type RepositoryPort interface {
	ListStudies(ctx context.Context, filters ListFilters) ([]Study, int, error)
	GetStudy(ctx context.Context, id string) (*Study, error)
	CreateStudy(ctx context.Context, s Study) (*Study, error)
	ListOpenQueries(ctx context.Context, studyID string) ([]Query, error)
	RaiseQuery(ctx context.Context, q Query) (*Query, error)
	ResolveQuery(ctx context.Context, queryID, resolvedBy, resolution string) error
}

// Service handles study business logic.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListStudies returns a page of studies with pagination metadata.
func (s *Service) ListStudies(ctx context.Context, filters ListFilters) ([]Study, shared.Pagination, error) {
	items, total, err := s.repo.ListStudies(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// GetStudy fetches one study.
func (s *Service) GetStudy(ctx context.Context, id string) (*Study, error) {
	return s.repo.GetStudy(ctx, id)
}

// CreateStudy registers a new trial in planning status.
func (s *Service) CreateStudy(ctx context.Context, actorID string, study Study) (*Study, error) {
	study.ID = uuid.NewString()
	if study.Status == "" {
		study.Status = StatusPlanning
	}
	created, err := s.repo.CreateStudy(ctx, study)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "studies.created", created.ID, map[string]any{"protocol": created.Protocol})
	return created, nil
}

// ListOpenQueries returns unresolved data queries for a study.
func (s *Service) ListOpenQueries(ctx context.Context, studyID string) ([]Query, error) {
	if _, err := s.repo.GetStudy(ctx, studyID); err != nil {
		return nil, err
	}
	return s.repo.ListOpenQueries(ctx, studyID)
}

// RaiseQuery opens a data clarification against a subject record.
func (s *Service) RaiseQuery(ctx context.Context, actorID string, q Query) (*Query, error) {
	if _, err := s.repo.GetStudy(ctx, q.StudyID); err != nil {
		return nil, err
	}
	q.ID = uuid.NewString()
	q.RaisedBy = actorID
	raised, err := s.repo.RaiseQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "studies.query_raised", raised.ID, map[string]any{"study_id": q.StudyID, "subject_ref": q.SubjectRef})
	return raised, nil
}

// ResolveQuery closes an open data query.
func (s *Service) ResolveQuery(ctx context.Context, actorID, queryID, resolution string) error {
	if err := s.repo.ResolveQuery(ctx, queryID, actorID, resolution); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "studies.query_resolved", queryID, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "study",
		EntityID: entityID,
		Meta:     meta,
		At:       time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
