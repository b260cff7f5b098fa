package citation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/internal/infrastructure/llm"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/pkg/errors"
)

// Amendment priorities, in rank order.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ReferenceMetadata describes the prior-art document under analysis.
type ReferenceMetadata struct {
	ReferenceNumber string `json:"referenceNumber"`
	Title           string `json:"title,omitempty"`
	Applicant       string `json:"applicant,omitempty"`
	Assignee        string `json:"assignee,omitempty"`
	PublicationDate string `json:"publicationDate,omitempty"`
}

// CitationEvidence is one passage the analysis relies on for an element.
type CitationEvidence struct {
	Citation string  `json:"citation"`
	Location string  `json:"location,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// ElementComparison maps one claim element against the reference.
type ElementComparison struct {
	Element      string             `json:"element"`
	IsDisclosed  bool               `json:"isDisclosed"`
	Analysis     string             `json:"analysis,omitempty"`
	KeyCitations []CitationEvidence `json:"keyCitations,omitempty"`
}

// CandidateAmendment is a proposed claim amendment produced during analysis.
// It is never persisted on its own; it lives inside the analysis JSON.
type CandidateAmendment struct {
	SuggestionText      string   `json:"suggestionText"`
	Reasoning           string   `json:"reasoning,omitempty"`
	Priority            string   `json:"priority"`
	AddressedRejections []string `json:"addressedRejections,omitempty"`

	// Validation-phase outcome, populated in two-phase mode.
	Validated      bool   `json:"validated,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// DeepAnalysis is the structured output of the analysis engine, persisted as
// the job's deepAnalysisJson payload.
type DeepAnalysis struct {
	OverallAssessment   string               `json:"overallAssessment"`
	RejectionRisk       string               `json:"rejectionRisk,omitempty"`
	NoveltyCommentary   string               `json:"noveltyCommentary,omitempty"`
	ElementComparisons  []ElementComparison  `json:"elementComparisons"`
	ProposedAmendments  []CandidateAmendment `json:"proposedAmendments,omitempty"`
	ValidationPerformed bool                 `json:"validationPerformed,omitempty"`
	ValidationResults   []ValidationVerdict  `json:"validationResults,omitempty"`
}

// AnalysisRequest carries everything one analysis run needs.
type AnalysisRequest struct {
	FilteredMatches json.RawMessage
	ClaimElements   []string
	ClaimText       string
	Reference       ReferenceMetadata
	PerElementCap   int
}

// AnalysisEngine drives the LLM deep analysis, including the optional
// two-phase propose/validate loop.
type AnalysisEngine interface {
	Analyze(ctx context.Context, req *AnalysisRequest) (*DeepAnalysis, error)

	// ExaminerSummary produces the optional office-action style enrichment
	// from a finished analysis, returned as a JSON document.
	ExaminerSummary(ctx context.Context, req *AnalysisRequest, analysis *DeepAnalysis) (string, error)
}

// EngineDeps holds the dependencies and tunables for the analysis engine.
type EngineDeps struct {
	LLM       Completer
	Validator SuggestionValidator
	Metrics   PipelineMetrics
	Logger    logging.Logger

	MaxRetries             int
	RetryDelay             time.Duration
	MaxValidatedAmendments int
	TwoPhase               bool
}

type analysisEngineImpl struct {
	llm           Completer
	validator     SuggestionValidator
	metrics       PipelineMetrics
	logger        logging.Logger
	maxRetries    int
	retryDelay    time.Duration
	maxAmendments int
	twoPhase      bool
}

// NewAnalysisEngine constructs the engine.
func NewAnalysisEngine(deps EngineDeps) AnalysisEngine {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	maxRetries := deps.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := deps.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxAmendments := deps.MaxValidatedAmendments
	if maxAmendments <= 0 {
		maxAmendments = 7
	}
	return &analysisEngineImpl{
		llm:           deps.LLM,
		validator:     deps.Validator,
		metrics:       metrics,
		logger:        logger.Named("analysis"),
		maxRetries:    maxRetries,
		retryDelay:    retryDelay,
		maxAmendments: maxAmendments,
		twoPhase:      deps.TwoPhase,
	}
}

// Analyze runs phase 1, and in two-phase mode validates the highest-priority
// candidate amendments against the reference before a finalizing second call.
func (e *analysisEngineImpl) Analyze(ctx context.Context, req *AnalysisRequest) (*DeepAnalysis, error) {
	started := time.Now()

	var phase1 DeepAnalysis
	if err := e.completeStructured(ctx, buildAnalysisMessages(req), &phase1); err != nil {
		return nil, err
	}

	if !e.twoPhase || e.validator == nil || len(phase1.ProposedAmendments) == 0 {
		e.metrics.AnalysisDuration(time.Since(started).Seconds())
		return &phase1, nil
	}

	candidates := rankAndCapAmendments(phase1.ProposedAmendments, e.maxAmendments)

	verdicts := make([]ValidationVerdict, 0, len(candidates))
	for _, cand := range candidates {
		verdicts = append(verdicts,
			e.validator.ValidateAgainstReference(ctx, cand, req.Reference.ReferenceNumber))
	}

	var phase2 DeepAnalysis
	if err := e.completeStructured(ctx, buildFinalizeMessages(req, &phase1, candidates, verdicts), &phase2); err != nil {
		return nil, err
	}

	merged := mergeAnalyses(&phase1, &phase2)
	merged.ValidationPerformed = true
	merged.ValidationResults = verdicts

	e.metrics.AnalysisDuration(time.Since(started).Seconds())
	return merged, nil
}

// ExaminerSummary runs one additional completion restating the analysis in
// office-action terms. It shares the retry budget of the main calls.
func (e *analysisEngineImpl) ExaminerSummary(ctx context.Context, req *AnalysisRequest, analysis *DeepAnalysis) (string, error) {
	var out struct {
		ExaminerSummary     string   `json:"examinerSummary"`
		SuggestedRejections []string `json:"suggestedRejections,omitempty"`
	}
	if err := e.completeStructured(ctx, buildExaminerMessages(req, analysis), &out); err != nil {
		return "", err
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeSerialization, "failed to serialize examiner summary")
	}
	return string(payload), nil
}

// completeStructured runs one JSON-mode completion with the retry budget,
// decoding into out. Truncated output gets its salvage attempt inside
// DecodeJSON; whatever still fails consumes a retry.
func (e *analysisEngineImpl) completeStructured(ctx context.Context, messages []llm.Message, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		comp, err := e.llm.CompleteJSON(ctx, messages)
		if err == nil {
			err = llm.DecodeJSON(comp.Content, out)
		}
		if err == nil {
			e.metrics.AnalysisAttempt("success")
			return nil
		}

		lastErr = err
		e.metrics.AnalysisAttempt("failure")
		e.logger.Warn("analysis attempt failed",
			logging.Int("attempt", attempt),
			logging.Err(err))

		if attempt == e.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.CodeAnalysisFailed, "analysis cancelled")
		case <-time.After(e.retryDelay):
		}
	}
	return errors.Wrap(lastErr, errors.CodeAnalysisFailed,
		fmt.Sprintf("analysis failed after %d attempts", e.maxRetries))
}

// rankAndCapAmendments orders candidates high > medium > low (stable within a
// priority) and caps the list to bound validation cost.
func rankAndCapAmendments(amendments []CandidateAmendment, max int) []CandidateAmendment {
	ranked := make([]CandidateAmendment, len(amendments))
	copy(ranked, amendments)
	sort.SliceStable(ranked, func(i, j int) bool {
		return priorityRank(ranked[i].Priority) < priorityRank(ranked[j].Priority)
	})
	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

func priorityRank(p string) int {
	switch strings.ToLower(p) {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// mergeAnalyses overlays phase-2 output on phase 1: phase 2 wins wherever it
// produced content, phase 1 fills the gaps.
func mergeAnalyses(phase1, phase2 *DeepAnalysis) *DeepAnalysis {
	merged := *phase2
	if merged.OverallAssessment == "" {
		merged.OverallAssessment = phase1.OverallAssessment
	}
	if merged.RejectionRisk == "" {
		merged.RejectionRisk = phase1.RejectionRisk
	}
	if merged.NoveltyCommentary == "" {
		merged.NoveltyCommentary = phase1.NoveltyCommentary
	}
	if len(merged.ElementComparisons) == 0 {
		merged.ElementComparisons = phase1.ElementComparisons
	}
	if len(merged.ProposedAmendments) == 0 {
		merged.ProposedAmendments = phase1.ProposedAmendments
	}
	return &merged
}

// DeriveMatchRecords converts the element comparisons of a finished analysis
// into citation-match rows for the match store.
func DeriveMatchRecords(j *job.CitationJob, analysis *DeepAnalysis) []job.MatchRecord {
	var records []job.MatchRecord
	for _, cmp := range analysis.ElementComparisons {
		for _, ev := range cmp.KeyCitations {
			if ev.Citation == "" {
				continue
			}
			records = append(records, job.MatchRecord{
				JobID:           j.ID,
				SearchContextID: j.SearchContextID,
				ReferenceNumber: j.ReferenceNumber,
				ElementText:     cmp.Element,
				CitationText:    ev.Citation,
				Score:           ev.Score,
				Location:        ev.Location,
			})
		}
	}
	return records
}
