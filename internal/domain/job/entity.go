// Package job defines the CitationJob aggregate: one extraction unit against
// the external semantic-search service for a given search context and
// optional prior-art reference.  The job row is the single source of truth
// for extraction and analysis progress; background workers update it, and any
// caller that needs to await completion polls it.
package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/clausehound/citex/pkg/errors"
)

// Status is the lifecycle state of a CitationJob.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessing      Status = "PROCESSING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailedExternal  Status = "FAILED_EXTERNAL"
	StatusErrorProcessing Status = "ERROR_PROCESSING"
	StatusTimeout         Status = "TIMEOUT"
	StatusNotFound        Status = "NOT_FOUND"
)

func (s Status) String() string { return string(s) }

// IsValid reports whether s is one of the defined statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailedExternal,
		StatusErrorProcessing, StatusTimeout, StatusNotFound:
		return true
	}
	return false
}

// IsTerminal reports whether s is a final state.  Terminal jobs are never
// retried in place; a refresh always creates a new job.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailedExternal, StatusErrorProcessing,
		StatusTimeout, StatusNotFound:
		return true
	}
	return false
}

// CitationJob is one request-response unit against the external citation
// search service.
//
// Write invariants, enforced by the mutation methods below:
//   - ExternalJobID is set at most once, immediately after a successful
//     submission.
//   - RawResultData and DeepAnalysisJSON are append-only: once written they
//     are never cleared or replaced with empty payloads.
//   - Terminal statuses are never retried in place; refresh supersedes the
//     job with a new one, recording the chain in Supersedes.
type CitationJob struct {
	ID              string `json:"id"`
	SearchContextID string `json:"searchContextId"`

	// ReferenceNumber is the prior-art document identifier this job is
	// scoped to; empty means the search ran unfiltered.
	ReferenceNumber string `json:"referenceNumber,omitempty"`

	Status Status `json:"status"`

	// ExternalJobID is the identifier assigned by the search service.
	ExternalJobID string     `json:"externalJobId,omitempty"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`

	// RawResultData is the opaque serialized match payload, set only when the
	// job reaches COMPLETED.
	RawResultData string `json:"rawResultData,omitempty"`

	// DeepAnalysisJSON holds the structured LLM analysis output.
	DeepAnalysisJSON string `json:"deepAnalysisJson,omitempty"`

	// ExaminerAnalysisJSON holds the optional examiner-style enrichment.
	ExaminerAnalysisJSON string `json:"examinerAnalysisJson,omitempty"`

	// Claim1Hash is the content hash of the claim text this job's search
	// inputs were parsed from; drives staleness detection.
	Claim1Hash string `json:"claim1Hash,omitempty"`

	// ParserVersionUsed identifies which claim-element parser generated the
	// search inputs.
	ParserVersionUsed int `json:"parserVersionUsed"`

	// Supersedes is the ID of the job this one replaced during a refresh,
	// forming an append-only version chain.  Empty for first-generation jobs.
	Supersedes string `json:"supersedes,omitempty"`

	ErrorCode    string `json:"error,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// New constructs a PENDING CitationJob for the given search context.
func New(searchContextID, referenceNumber, claim1Hash string, parserVersion int) (*CitationJob, error) {
	if searchContextID == "" {
		return nil, errors.InvalidParam("search context ID is required")
	}
	now := time.Now().UTC()
	return &CitationJob{
		ID:                uuid.NewString(),
		SearchContextID:   searchContextID,
		ReferenceNumber:   referenceNumber,
		Status:            StatusPending,
		Claim1Hash:        claim1Hash,
		ParserVersionUsed: parserVersion,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// NewSuperseding constructs a fresh PENDING job that replaces old in the
// version chain.  The old job itself is left untouched.
func NewSuperseding(old *CitationJob, claim1Hash string, parserVersion int) (*CitationJob, error) {
	if old == nil {
		return nil, errors.InvalidParam("superseded job is required")
	}
	j, err := New(old.SearchContextID, old.ReferenceNumber, claim1Hash, parserVersion)
	if err != nil {
		return nil, err
	}
	j.Supersedes = old.ID
	return j, nil
}

// AssignExternalID records the identifier returned by the search service and
// moves the job to PROCESSING.  A second assignment is a state violation.
func (j *CitationJob) AssignExternalID(externalID string) error {
	if externalID == "" {
		return errors.InvalidParam("external job ID cannot be empty")
	}
	if j.ExternalJobID != "" {
		return errors.InvalidState("external job ID already assigned").
			WithDetail("job=" + j.ID)
	}
	if j.Status.IsTerminal() {
		return errors.InvalidState("cannot assign external ID to a terminal job").
			WithDetail("job=" + j.ID + " status=" + j.Status.String())
	}
	now := time.Now().UTC()
	j.ExternalJobID = externalID
	j.Status = StatusProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// Touch records a poll attempt against the external service.
func (j *CitationJob) Touch() {
	now := time.Now().UTC()
	j.LastCheckedAt = &now
	j.UpdatedAt = now
}

// Complete records the serialized raw result payload and moves the job to
// COMPLETED.  Completing a job that already holds result data is rejected to
// preserve the append-only guarantee.
func (j *CitationJob) Complete(rawResultData string) error {
	if j.Status.IsTerminal() {
		return errors.InvalidState("job already terminal").
			WithDetail("job=" + j.ID + " status=" + j.Status.String())
	}
	if rawResultData == "" {
		return errors.InvalidParam("raw result data cannot be empty on completion")
	}
	now := time.Now().UTC()
	j.RawResultData = rawResultData
	j.Status = StatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// AttachDeepAnalysis records the structured analysis output.  Overwriting an
// existing analysis with an empty payload is rejected; replacing it with a
// merged phase-2 result is allowed.
func (j *CitationJob) AttachDeepAnalysis(analysisJSON string) error {
	if analysisJSON == "" {
		return errors.InvalidParam("deep analysis payload cannot be empty")
	}
	j.DeepAnalysisJSON = analysisJSON
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// AttachExaminerAnalysis records the optional examiner-style enrichment.
func (j *CitationJob) AttachExaminerAnalysis(analysisJSON string) error {
	if analysisJSON == "" {
		return errors.InvalidParam("examiner analysis payload cannot be empty")
	}
	j.ExaminerAnalysisJSON = analysisJSON
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail moves the job into the given terminal failure status, recording the
// normalized error code and message so the row is inspectable after the
// background task that produced the failure is gone.
func (j *CitationJob) Fail(status Status, code, message string) error {
	switch status {
	case StatusFailedExternal, StatusErrorProcessing, StatusTimeout, StatusNotFound:
	default:
		return errors.InvalidParam("status " + status.String() + " is not a failure status")
	}
	if j.Status.IsTerminal() {
		return errors.InvalidState("job already terminal").
			WithDetail("job=" + j.ID + " status=" + j.Status.String())
	}
	now := time.Now().UTC()
	j.Status = status
	j.ErrorCode = code
	j.ErrorMessage = message
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// FailAnalysis records a deep-analysis failure.  Unlike Fail it is allowed on
// a COMPLETED job: extraction already finished, so the raw results stay, but
// the row must not read as a success when analysis errored out.
func (j *CitationJob) FailAnalysis(code, message string) error {
	if j.Status != StatusCompleted && j.Status.IsTerminal() {
		return errors.InvalidState("job already terminal").
			WithDetail("job=" + j.ID + " status=" + j.Status.String())
	}
	now := time.Now().UTC()
	j.Status = StatusErrorProcessing
	j.ErrorCode = code
	j.ErrorMessage = message
	j.UpdatedAt = now
	return nil
}

// HasAnalysis reports whether deep analysis output has been attached.
func (j *CitationJob) HasAnalysis() bool {
	return j.DeepAnalysisJSON != ""
}
