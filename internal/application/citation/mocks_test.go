package citation

import (
	"context"
	"sync"

	"github.com/clausehound/citex/internal/domain/claim"
	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/internal/infrastructure/llm"
	"github.com/clausehound/citex/internal/infrastructure/searchapi"
	"github.com/clausehound/citex/pkg/errors"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockSearchClient struct {
	submitFn    func(ctx context.Context, req searchapi.SubmitRequest) (string, error)
	pollDoneFn  func(ctx context.Context, externalJobID string) (*searchapi.PollResult, error)
	threshold   float64
	mu          sync.Mutex
	submitCalls []searchapi.SubmitRequest
}

func (m *mockSearchClient) Submit(ctx context.Context, req searchapi.SubmitRequest) (string, error) {
	m.mu.Lock()
	m.submitCalls = append(m.submitCalls, req)
	m.mu.Unlock()
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return "ext-1", nil
}

func (m *mockSearchClient) PollUntilDone(ctx context.Context, externalJobID string) (*searchapi.PollResult, error) {
	if m.pollDoneFn != nil {
		return m.pollDoneFn(ctx, externalJobID)
	}
	return &searchapi.PollResult{StatusCode: 1, Outcome: searchapi.OutcomeCompleted, Result: []byte(`[]`)}, nil
}

func (m *mockSearchClient) DefaultThreshold() float64 {
	if m.threshold > 0 {
		return m.threshold
	}
	return 0.3
}

type mockCompleter struct {
	completeFn func(ctx context.Context, messages []llm.Message) (*llm.Completion, error)
	mu         sync.Mutex
	calls      int
}

func (m *mockCompleter) CompleteJSON(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.completeFn != nil {
		return m.completeFn(ctx, messages)
	}
	return &llm.Completion{Content: `{}`, FinishReason: "stop"}, nil
}

func (m *mockCompleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type memoryJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*job.CitationJob
}

func newMemoryJobRepo() *memoryJobRepo {
	return &memoryJobRepo{jobs: make(map[string]*job.CitationJob)}
}

func cloneJob(j *job.CitationJob) *job.CitationJob {
	c := *j
	return &c
}

func (r *memoryJobRepo) Create(_ context.Context, j *job.CitationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = cloneJob(j)
	return nil
}

func (r *memoryJobRepo) Save(_ context.Context, j *job.CitationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = cloneJob(j)
	return nil
}

func (r *memoryJobRepo) Update(ctx context.Context, id string, fields job.UpdateFields) (*job.CitationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, errors.New(errors.CodeJobNotFound, "job not found")
	}
	if fields.Status != nil {
		j.Status = *fields.Status
	}
	if fields.ErrorMessage != nil {
		j.ErrorMessage = *fields.ErrorMessage
	}
	return cloneJob(j), nil
}

func (r *memoryJobRepo) FindByID(_ context.Context, id string) (*job.CitationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, errors.New(errors.CodeJobNotFound, "job not found")
	}
	return cloneJob(j), nil
}

func (r *memoryJobRepo) FindByExternalID(_ context.Context, externalID string) (*job.CitationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ExternalJobID == externalID {
			return cloneJob(j), nil
		}
	}
	return nil, errors.New(errors.CodeJobNotFound, "job not found")
}

func (r *memoryJobRepo) ListBySearchContext(_ context.Context, searchContextID string) ([]*job.CitationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*job.CitationJob
	for _, j := range r.jobs {
		if j.SearchContextID == searchContextID {
			out = append(out, cloneJob(j))
		}
	}
	return out, nil
}

type mockMatchStore struct {
	mu       sync.Mutex
	replaced map[string][]job.MatchRecord
}

func newMockMatchStore() *mockMatchStore {
	return &mockMatchStore{replaced: make(map[string][]job.MatchRecord)}
}

func (m *mockMatchStore) ReplaceForJob(_ context.Context, jobID string, matches []job.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced[jobID] = matches
	return nil
}

func (m *mockMatchStore) ListByJob(_ context.Context, jobID string) ([]job.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaced[jobID], nil
}

type mockClaimSource struct {
	getTextFn     func(ctx context.Context, searchContextID string) (string, error)
	getElementsFn func(ctx context.Context, searchContextID string) (*claim.ParsedElements, error)
	saveFn        func(ctx context.Context, parsed *claim.ParsedElements) error
	mu            sync.Mutex
	saved         []*claim.ParsedElements
}

func (m *mockClaimSource) GetClaimText(ctx context.Context, searchContextID string) (string, error) {
	if m.getTextFn != nil {
		return m.getTextFn(ctx, searchContextID)
	}
	return testClaimText, nil
}

func (m *mockClaimSource) GetClaimElements(ctx context.Context, searchContextID string) (*claim.ParsedElements, error) {
	if m.getElementsFn != nil {
		return m.getElementsFn(ctx, searchContextID)
	}
	return nil, nil
}

func (m *mockClaimSource) SaveParsedElements(ctx context.Context, parsed *claim.ParsedElements) error {
	m.mu.Lock()
	m.saved = append(m.saved, parsed)
	m.mu.Unlock()
	if m.saveFn != nil {
		return m.saveFn(ctx, parsed)
	}
	return nil
}

type mockPublisher struct {
	mu       sync.Mutex
	jobs     []JobCompletedEvent
	analyses []AnalysisCompletedEvent
}

func (m *mockPublisher) PublishJobCompleted(_ context.Context, event JobCompletedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, event)
	return nil
}

func (m *mockPublisher) PublishAnalysisCompleted(_ context.Context, event AnalysisCompletedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, event)
	return nil
}

type mockEnqueuer struct {
	publishFn func(ctx context.Context, jobID, searchContextID, referenceNumber string) error
	mu        sync.Mutex
	requested []string
}

func (m *mockEnqueuer) PublishExtractionRequested(ctx context.Context, jobID, searchContextID, referenceNumber string) error {
	m.mu.Lock()
	m.requested = append(m.requested, jobID)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, jobID, searchContextID, referenceNumber)
	}
	return nil
}

type mockValidator struct {
	validateFn func(ctx context.Context, candidate CandidateAmendment, referenceNumber string) ValidationVerdict
	mu         sync.Mutex
	validated  []CandidateAmendment
}

func (m *mockValidator) ValidateAgainstReference(ctx context.Context, candidate CandidateAmendment, referenceNumber string) ValidationVerdict {
	m.mu.Lock()
	m.validated = append(m.validated, candidate)
	m.mu.Unlock()
	if m.validateFn != nil {
		return m.validateFn(ctx, candidate, referenceNumber)
	}
	return ValidationVerdict{ReferenceNumber: referenceNumber, Recommendation: RecommendationKeep}
}

func (m *mockValidator) ValidateAgainstReferences(ctx context.Context, candidate CandidateAmendment, referenceNumbers []string) MultiReferenceVerdict {
	agg := MultiReferenceVerdict{SuggestionText: candidate.SuggestionText, Recommendation: RecommendationKeep}
	for _, ref := range referenceNumbers {
		agg.PerReference = append(agg.PerReference, m.ValidateAgainstReference(ctx, candidate, ref))
	}
	return agg
}

type mockEngine struct {
	analyzeFn  func(ctx context.Context, req *AnalysisRequest) (*DeepAnalysis, error)
	examinerFn func(ctx context.Context, req *AnalysisRequest, analysis *DeepAnalysis) (string, error)
}

func (m *mockEngine) Analyze(ctx context.Context, req *AnalysisRequest) (*DeepAnalysis, error) {
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, req)
	}
	return &DeepAnalysis{OverallAssessment: "anticipated"}, nil
}

func (m *mockEngine) ExaminerSummary(ctx context.Context, req *AnalysisRequest, analysis *DeepAnalysis) (string, error) {
	if m.examinerFn != nil {
		return m.examinerFn(ctx, req, analysis)
	}
	return `{"examinerSummary":"none"}`, nil
}

const testClaimText = "1. A monitoring system comprising: a sensor configured to measure ambient temperature; " +
	"a controller coupled to the sensor, wherein the controller filters transient noise; " +
	"and a display unit for rendering readings."
