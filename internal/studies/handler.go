package studies

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/trialdesk/trialdesk/internal/platform/httpx"
	"github.com/trialdesk/trialdesk/internal/rbac"
	"github.com/trialdesk/trialdesk/internal/shared"
)

// Handler wires HTTP endpoints for studies and data queries.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      *rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      guard,
		validator: validator.New(),
	}
}

// MountRoutes registers study routes with per-operation permission guards.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.PermStudiesView)).Get("/", h.handleList)
	r.With(h.rbac.Require(rbac.PermStudiesManage)).Post("/", h.handleCreate)
	r.With(h.rbac.Require(rbac.PermStudiesView)).Get("/{studyID}", h.handleGet)
	r.With(h.rbac.Require(rbac.PermQueriesView)).Get("/{studyID}/queries", h.handleListQueries)
	r.With(h.rbac.Require(rbac.PermQueriesRaise)).Post("/{studyID}/queries", h.handleRaiseQuery)
	r.With(h.rbac.Require(rbac.PermQueriesResolve)).Post("/queries/{queryID}/resolve", h.handleResolveQuery)
}

type studyResponse struct {
	ID             string    `json:"id"`
	Protocol       string    `json:"protocol"`
	Title          string    `json:"title"`
	Sponsor        string    `json:"sponsor"`
	OrganizationID string    `json:"organizationId"`
	Phase          string    `json:"phase"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toStudyResponse(s Study) studyResponse {
	return studyResponse{
		ID:             s.ID,
		Protocol:       s.Protocol,
		Title:          s.Title,
		Sponsor:        s.Sponsor,
		OrganizationID: s.OrganizationID,
		Phase:          s.Phase,
		Status:         s.Status,
		CreatedAt:      s.CreatedAt,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	filters := ListFilters{
		Search:  q.Get("search"),
		Status:  q.Get("status"),
		Page:    page,
		PerPage: perPage,
	}
	items, pagination, err := h.service.ListStudies(r.Context(), filters)
	if err != nil {
		h.logger.Error("list studies", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]studyResponse, 0, len(items))
	for _, s := range items {
		out = append(out, toStudyResponse(s))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"studies": out,
		"pagination": map[string]int{
			"page":       pagination.Page,
			"perPage":    pagination.PerPage,
			"total":      pagination.Total,
			"totalPages": pagination.TotalPages,
		},
	})
}

type createStudyRequest struct {
	Protocol       string `json:"protocol" validate:"required"`
	Title          string `json:"title" validate:"required"`
	Sponsor        string `json:"sponsor" validate:"required"`
	OrganizationID string `json:"organizationId" validate:"required"`
	Phase          string `json:"phase" validate:"required,oneof=I II III IV"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createStudyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	study, err := h.service.CreateStudy(r.Context(), h.actorID(r), Study{
		Protocol:       req.Protocol,
		Title:          req.Title,
		Sponsor:        req.Sponsor,
		OrganizationID: req.OrganizationID,
		Phase:          req.Phase,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toStudyResponse(*study))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	study, err := h.service.GetStudy(r.Context(), chi.URLParam(r, "studyID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStudyResponse(*study))
}

type queryResponse struct {
	ID         string     `json:"id"`
	StudyID    string     `json:"studyId"`
	SubjectRef string     `json:"subjectRef"`
	Field      string     `json:"field"`
	Question   string     `json:"question"`
	Status     string     `json:"status"`
	RaisedBy   string     `json:"raisedBy"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
	RaisedAt   time.Time  `json:"raisedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

func toQueryResponse(q Query) queryResponse {
	return queryResponse{
		ID:         q.ID,
		StudyID:    q.StudyID,
		SubjectRef: q.SubjectRef,
		Field:      q.Field,
		Question:   q.Question,
		Status:     q.Status,
		RaisedBy:   q.RaisedBy,
		ResolvedBy: q.ResolvedBy,
		Resolution: q.Resolution,
		RaisedAt:   q.RaisedAt,
		ResolvedAt: q.ResolvedAt,
	}
}

func (h *Handler) handleListQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := h.service.ListOpenQueries(r.Context(), chi.URLParam(r, "studyID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]queryResponse, 0, len(queries))
	for _, q := range queries {
		out = append(out, toQueryResponse(q))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"queries": out})
}

type raiseQueryRequest struct {
	SubjectRef string `json:"subjectRef" validate:"required"`
	Field      string `json:"field" validate:"required"`
	Question   string `json:"question" validate:"required"`
}

func (h *Handler) handleRaiseQuery(w http.ResponseWriter, r *http.Request) {
	var req raiseQueryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	query, err := h.service.RaiseQuery(r.Context(), h.actorID(r), Query{
		StudyID:    chi.URLParam(r, "studyID"),
		SubjectRef: req.SubjectRef,
		Field:      req.Field,
		Question:   req.Question,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toQueryResponse(*query))
}

type resolveQueryRequest struct {
	Resolution string `json:"resolution" validate:"required"`
}

func (h *Handler) handleResolveQuery(w http.ResponseWriter, r *http.Request) {
	var req resolveQueryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ResolveQuery(r.Context(), h.actorID(r), chi.URLParam(r, "queryID"), req.Resolution); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) actorID(r *http.Request) string {
	if p := shared.PrincipalFromContext(r.Context()); p != nil {
		return p.ID
	}
	return ""
}
