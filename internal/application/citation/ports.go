// Package citation implements the extraction pipeline: submitting prior-art
// searches, consolidating raw match data, driving the two-phase LLM deep
// analysis, and validating candidate claim amendments.
package citation

import (
	"context"

	"github.com/clausehound/citex/internal/infrastructure/llm"
	"github.com/clausehound/citex/internal/infrastructure/searchapi"
)

// SearchClient is the driven port onto the external citation-search service.
type SearchClient interface {
	Submit(ctx context.Context, req searchapi.SubmitRequest) (string, error)
	PollUntilDone(ctx context.Context, externalJobID string) (*searchapi.PollResult, error)
	DefaultThreshold() float64
}

// Completer is the driven port onto the chat-completion provider.
type Completer interface {
	CompleteJSON(ctx context.Context, messages []llm.Message) (*llm.Completion, error)
}

// JobCompletedEvent announces that extraction finished for a job.
type JobCompletedEvent struct {
	JobID           string `json:"jobId"`
	SearchContextID string `json:"searchContextId"`
	ReferenceNumber string `json:"referenceNumber,omitempty"`
	Status          string `json:"status"`
}

// AnalysisCompletedEvent announces that deep analysis finished for a job.
type AnalysisCompletedEvent struct {
	JobID               string `json:"jobId"`
	SearchContextID     string `json:"searchContextId"`
	ReferenceNumber     string `json:"referenceNumber,omitempty"`
	ValidationPerformed bool   `json:"validationPerformed"`
	AmendmentCount      int    `json:"amendmentCount"`
}

// ExtractionEnqueuer hands a freshly created job to an out-of-process worker
// instead of running extraction locally.
type ExtractionEnqueuer interface {
	PublishExtractionRequested(ctx context.Context, jobID, searchContextID, referenceNumber string) error
}

// EventPublisher emits pipeline lifecycle events. Publishing is best-effort:
// callers log and continue on failure.
type EventPublisher interface {
	PublishJobCompleted(ctx context.Context, event JobCompletedEvent) error
	PublishAnalysisCompleted(ctx context.Context, event AnalysisCompletedEvent) error
}

// PipelineMetrics records pipeline observations. A no-op implementation is
// used where metrics are not wired.
type PipelineMetrics interface {
	JobFinished(status string)
	ExtractionDuration(seconds float64)
	AnalysisDuration(seconds float64)
	AnalysisAttempt(outcome string)
	ValidationVerdict(disclosed bool)
}
