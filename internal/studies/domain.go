package studies

import "time"

// Study statuses follow the trial lifecycle.
const (
	StatusPlanning  = "planning"
	StatusEnrolling = "enrolling"
	StatusActive    = "active"
	StatusClosed    = "closed"
)

// Study is a clinical trial tracked by the platform.
type Study struct {
	ID             string
	Protocol       string
	Title          string
	Sponsor        string
	OrganizationID string
	Phase          string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Query is a data clarification raised against a study subject record. It
// stays open until a monitor resolves it.
type Query struct {
	ID         string
	StudyID    string
	SubjectRef string
	Field      string
	Question   string
	Status     string
	RaisedBy   string
	ResolvedBy string
	Resolution string
	RaisedAt   time.Time
	ResolvedAt *time.Time
}

// Query statuses.
const (
	QueryOpen     = "open"
	QueryResolved = "resolved"
)

// ListFilters narrows study listings.
type ListFilters struct {
	Search  string
	Status  string
	Page    int
	PerPage int
}
