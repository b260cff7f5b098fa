package job

import "context"

// UpdateFields is a partial update applied to a stored CitationJob.  Nil
// pointers mean "leave unchanged", matching the repository contract of the
// surrounding application: status transitions, payload attachment, and error
// recording all flow through Update.
type UpdateFields struct {
	Status               *Status
	ExternalJobID        *string
	LastCheckedAt        *bool // true means "stamp now"
	RawResultData        *string
	DeepAnalysisJSON     *string
	ExaminerAnalysisJSON *string
	ErrorCode            *string
	ErrorMessage         *string
	StartedNow           bool
	CompletedNow         bool
}

// Repository is the persistence port for CitationJob records.  Implemented by
// the postgres adapter; consumed by the extraction service, the deep-analysis
// engine, and the refresh coordinator.
type Repository interface {
	// Create persists a new job row.
	Create(ctx context.Context, j *CitationJob) error

	// Update applies the given partial update and returns the stored row.
	Update(ctx context.Context, id string, fields UpdateFields) (*CitationJob, error)

	// Save persists the full current state of j (optimistic, last-writer-wins;
	// each job is single-writer in practice).
	Save(ctx context.Context, j *CitationJob) error

	// FindByID returns the job or a CodeJobNotFound error.
	FindByID(ctx context.Context, id string) (*CitationJob, error)

	// FindByExternalID returns the job owning the given external identifier,
	// or a CodeJobNotFound error.
	FindByExternalID(ctx context.Context, externalID string) (*CitationJob, error)

	// ListBySearchContext returns all jobs for a search context, newest first.
	ListBySearchContext(ctx context.Context, searchContextID string) ([]*CitationJob, error)
}

// MatchRecord is one citation-match row derived from a completed deep
// analysis, keyed by claim element and prior-art reference.
type MatchRecord struct {
	JobID           string  `json:"jobId"`
	SearchContextID string  `json:"searchContextId"`
	ReferenceNumber string  `json:"referenceNumber"`
	ElementText     string  `json:"elementText"`
	CitationText    string  `json:"citationText"`
	ParagraphText   string  `json:"paragraphText,omitempty"`
	Score           float64 `json:"score"`
	Location        string  `json:"location,omitempty"`
}

// MatchStore persists citation-match rows derived from analysis output.
type MatchStore interface {
	// ReplaceForJob atomically replaces the match rows derived for a job.
	ReplaceForJob(ctx context.Context, jobID string, matches []MatchRecord) error

	// ListByJob returns the match rows of a job, grouped by claim element
	// with the strongest citations first.
	ListByJob(ctx context.Context, jobID string) ([]MatchRecord, error)
}
