package citation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clausehound/citex/internal/domain/claim"
	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/internal/infrastructure/searchapi"
	"github.com/clausehound/citex/pkg/errors"
)

// Service is the entry point of the citation pipeline. QueueExtraction is
// fire-and-forget: it returns once the PENDING row exists and leaves the
// work to a detached background task racing a wall-clock budget. The Run
// methods are the synchronous building blocks, used by the background task,
// the worker, and the refresh coordinator.
type Service interface {
	QueueExtraction(ctx context.Context, searchContextID, referenceNumber string) (*job.CitationJob, error)
	RunExtraction(ctx context.Context, jobID string) error
	RunDeepAnalysis(ctx context.Context, jobID string) error
	ProcessJob(ctx context.Context, jobID string) error
	GetJob(ctx context.Context, jobID string) (*job.CitationJob, error)
}

// Deps holds the dependencies for the citation service.
type Deps struct {
	Repo         job.Repository
	Matches      job.MatchStore
	Claims       claim.Source
	Search       SearchClient
	Engine       AnalysisEngine
	Consolidator *Consolidator
	Publisher    EventPublisher
	Metrics      PipelineMetrics
	Logger       logging.Logger

	// Enqueuer, when set together with EnqueueOnly, makes QueueExtraction
	// publish the job to the worker queue instead of spawning the detached
	// in-process run.
	Enqueuer    ExtractionEnqueuer
	EnqueueOnly bool

	// ExtractionTimeout and AnalysisTimeout are the wall-clock budgets the
	// detached background task races against.
	ExtractionTimeout time.Duration
	AnalysisTimeout   time.Duration

	// ExaminerEnrichment enables the optional second analysis pass.
	ExaminerEnrichment bool
}

type citationServiceImpl struct {
	repo         job.Repository
	matches      job.MatchStore
	claims       claim.Source
	search       SearchClient
	engine       AnalysisEngine
	consolidator *Consolidator
	publisher    EventPublisher
	metrics      PipelineMetrics
	logger       logging.Logger

	enqueuer    ExtractionEnqueuer
	enqueueOnly bool

	extractionTimeout time.Duration
	analysisTimeout   time.Duration
	examinerEnabled   bool
}

// NewService constructs the citation service.
func NewService(deps Deps) Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	consolidator := deps.Consolidator
	if consolidator == nil {
		consolidator = NewConsolidator(0, logger)
	}
	extractionTimeout := deps.ExtractionTimeout
	if extractionTimeout <= 0 {
		extractionTimeout = 45 * time.Second
	}
	analysisTimeout := deps.AnalysisTimeout
	if analysisTimeout <= 0 {
		analysisTimeout = 3 * time.Minute
	}
	return &citationServiceImpl{
		repo:              deps.Repo,
		matches:           deps.Matches,
		claims:            deps.Claims,
		search:            deps.Search,
		engine:            deps.Engine,
		consolidator:      consolidator,
		publisher:         deps.Publisher,
		metrics:           metrics,
		logger:            logger.Named("citation"),
		enqueuer:          deps.Enqueuer,
		enqueueOnly:       deps.EnqueueOnly && deps.Enqueuer != nil,
		extractionTimeout: extractionTimeout,
		analysisTimeout:   analysisTimeout,
		examinerEnabled:   deps.ExaminerEnrichment,
	}
}

// QueueExtraction creates the PENDING job row and returns immediately. In the
// default topology it spawns the detached in-process pipeline run; with
// enqueue-only enabled it publishes the job to the worker queue instead.
// Background errors are recorded on the job and swallowed; there is no caller
// left to propagate to.
func (s *citationServiceImpl) QueueExtraction(ctx context.Context, searchContextID, referenceNumber string) (*job.CitationJob, error) {
	claimText, err := s.claims.GetClaimText(ctx, searchContextID)
	if err != nil {
		return nil, err
	}

	j, err := job.New(searchContextID, referenceNumber, claim.Hash(claimText), claim.CurrentParserVersion)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}

	if s.enqueueOnly {
		if err := s.enqueuer.PublishExtractionRequested(ctx, j.ID, j.SearchContextID, j.ReferenceNumber); err != nil {
			// No worker will ever see the job, so it must not stay PENDING.
			return nil, s.failExtraction(ctx, j, job.StatusErrorProcessing, err)
		}
		return j, nil
	}

	go s.runDetached(j.ID)
	return j, nil
}

// runDetached executes the pipeline for one job, racing each phase against
// its wall-clock budget. On timeout the in-flight work is abandoned, not
// cancelled; the job is forced into a terminal state so it never reads as
// PROCESSING forever.
func (s *citationServiceImpl) runDetached(jobID string) {
	logger := s.logger.With(logging.String("job_id", jobID))

	err := raceTimeout(s.extractionTimeout, func() error {
		return s.RunExtraction(context.Background(), jobID)
	})
	if errors.IsCode(err, errors.CodeTimeout) {
		s.forceTerminal(jobID, job.StatusTimeout, errors.CodePollingTimeout.String(),
			"extraction exceeded its background time budget")
		return
	}
	if err != nil {
		// Already recorded on the job by RunExtraction.
		logger.Warn("background extraction failed", logging.Err(err))
		return
	}

	err = raceTimeout(s.analysisTimeout, func() error {
		return s.RunDeepAnalysis(context.Background(), jobID)
	})
	if errors.IsCode(err, errors.CodeTimeout) {
		s.forceTerminal(jobID, job.StatusErrorProcessing, errors.CodeAnalysisFailed.String(),
			"deep analysis exceeded its background time budget")
		return
	}
	if err != nil {
		logger.Warn("background analysis failed", logging.Err(err))
	}
}

// raceTimeout races work against a wall-clock budget. The work goroutine is
// left to finish (and be discarded) on its own when the budget wins.
func raceTimeout(budget time.Duration, work func() error) error {
	done := make(chan error, 1)
	go func() { done <- work() }()
	select {
	case err := <-done:
		return err
	case <-time.After(budget):
		return errors.Timeout("background task exceeded its time budget")
	}
}

// forceTerminal stamps a terminal failure state onto the job row, tolerating
// the race where the abandoned worker finished in the meantime.
func (s *citationServiceImpl) forceTerminal(jobID string, status job.Status, code, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		s.logger.Error("cannot load job to record timeout", logging.String("job_id", jobID), logging.Err(err))
		return
	}
	if j.Status.IsTerminal() {
		return
	}
	if err := j.Fail(status, code, message); err != nil {
		return
	}
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("cannot persist timeout state", logging.String("job_id", jobID), logging.Err(err))
		return
	}
	s.metrics.JobFinished(status.String())
}

// RunExtraction submits the search for a PENDING job and polls it to a
// terminal outcome. Every failure path records a terminal status and the
// normalized error on the job before returning the error.
func (s *citationServiceImpl) RunExtraction(ctx context.Context, jobID string) error {
	started := time.Now()

	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status.IsTerminal() {
		return errors.New(errors.CodeJobStateConflict, "job is terminal and is never retried in place").
			WithDetail("job=" + j.ID + " status=" + j.Status.String())
	}

	claimText, err := s.claims.GetClaimText(ctx, j.SearchContextID)
	if err != nil {
		return s.failExtraction(ctx, j, job.StatusErrorProcessing, err)
	}
	elements, err := s.resolveElements(ctx, j.SearchContextID, claimText)
	if err != nil {
		return s.failExtraction(ctx, j, job.StatusErrorProcessing, err)
	}

	var refFilter *string
	if j.ReferenceNumber != "" {
		refFilter = &j.ReferenceNumber
	}
	externalID, err := s.search.Submit(ctx, searchapi.SubmitRequest{
		SearchInputs:    elements,
		ReferenceFilter: refFilter,
		Threshold:       s.search.DefaultThreshold(),
	})
	if err != nil {
		return s.failExtraction(ctx, j, job.StatusFailedExternal, err)
	}

	if err := j.AssignExternalID(externalID); err != nil {
		return s.failExtraction(ctx, j, job.StatusErrorProcessing, err)
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}

	res, err := s.search.PollUntilDone(ctx, externalID)
	if err != nil {
		switch {
		case errors.IsCode(err, errors.CodePollingTimeout):
			return s.failExtraction(ctx, j, job.StatusTimeout, err)
		case errors.IsCode(err, errors.CodeExternalJobNotFound):
			return s.failExtraction(ctx, j, job.StatusNotFound, err)
		default:
			return s.failExtraction(ctx, j, job.StatusFailedExternal, err)
		}
	}

	j.Touch()
	if res.Outcome == searchapi.OutcomeFailed {
		failErr := errors.Newf(errors.CodeExternalFailed,
			"external search reported status %d: %s", res.StatusCode, res.ErrorPayload)
		return s.failExtraction(ctx, j, job.StatusFailedExternal, failErr)
	}

	if err := j.Complete(string(res.Result)); err != nil {
		// A completed poll with no usable payload must still land the job in
		// a terminal state with the error recorded.
		return s.failExtraction(ctx, j, job.StatusErrorProcessing, err)
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}

	s.metrics.JobFinished(job.StatusCompleted.String())
	s.metrics.ExtractionDuration(time.Since(started).Seconds())
	s.publishJobEvent(ctx, j)

	s.logger.Info("extraction completed",
		logging.String("job_id", j.ID),
		logging.String("external_job_id", externalID),
		logging.Duration("elapsed", time.Since(started)))
	return nil
}

// RunDeepAnalysis consolidates the raw results of a COMPLETED job, drives
// the analysis engine, and persists analysis output plus derived citation
// matches. Analysis errors are recorded on the job before being returned.
func (s *citationServiceImpl) RunDeepAnalysis(ctx context.Context, jobID string) error {
	started := time.Now()

	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusCompleted {
		return errors.New(errors.CodeJobStateConflict, "deep analysis requires a completed extraction").
			WithDetail("job=" + j.ID + " status=" + j.Status.String())
	}

	claimText, err := s.claims.GetClaimText(ctx, j.SearchContextID)
	if err != nil {
		return s.failAnalysis(ctx, j, err)
	}
	elements, err := s.resolveElements(ctx, j.SearchContextID, claimText)
	if err != nil {
		return s.failAnalysis(ctx, j, err)
	}

	req := &AnalysisRequest{
		FilteredMatches: s.consolidator.Filter(json.RawMessage(j.RawResultData)),
		ClaimElements:   elements,
		ClaimText:       claimText,
		Reference:       ReferenceMetadata{ReferenceNumber: j.ReferenceNumber},
		PerElementCap:   s.consolidator.topK,
	}

	analysis, err := s.engine.Analyze(ctx, req)
	if err != nil {
		return s.failAnalysis(ctx, j, err)
	}

	payload, err := json.Marshal(analysis)
	if err != nil {
		return s.failAnalysis(ctx, j, errors.Wrap(err, errors.CodeSerialization, "cannot serialize analysis"))
	}
	if err := j.AttachDeepAnalysis(string(payload)); err != nil {
		return s.failAnalysis(ctx, j, err)
	}

	if s.examinerEnabled {
		if examiner, exErr := s.engine.ExaminerSummary(ctx, req, analysis); exErr != nil {
			// Enrichment is optional; a failure never fails the job.
			s.logger.Warn("examiner enrichment failed", logging.String("job_id", j.ID), logging.Err(exErr))
		} else if attachErr := j.AttachExaminerAnalysis(examiner); attachErr != nil {
			s.logger.Warn("examiner enrichment rejected", logging.String("job_id", j.ID), logging.Err(attachErr))
		}
	}

	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}

	if records := DeriveMatchRecords(j, analysis); len(records) > 0 && s.matches != nil {
		if err := s.matches.ReplaceForJob(ctx, j.ID, records); err != nil {
			s.logger.Warn("failed to persist derived citation matches",
				logging.String("job_id", j.ID), logging.Err(err))
		}
	}

	if s.publisher != nil {
		event := AnalysisCompletedEvent{
			JobID:               j.ID,
			SearchContextID:     j.SearchContextID,
			ReferenceNumber:     j.ReferenceNumber,
			ValidationPerformed: analysis.ValidationPerformed,
			AmendmentCount:      len(analysis.ProposedAmendments),
		}
		if err := s.publisher.PublishAnalysisCompleted(ctx, event); err != nil {
			s.logger.Warn("failed to publish analysis event", logging.String("job_id", j.ID), logging.Err(err))
		}
	}

	s.logger.Info("deep analysis completed",
		logging.String("job_id", j.ID),
		logging.Bool("validation_performed", analysis.ValidationPerformed),
		logging.Duration("elapsed", time.Since(started)))
	return nil
}

// ProcessJob runs extraction then deep analysis synchronously; the worker and
// the refresh coordinator use it.
func (s *citationServiceImpl) ProcessJob(ctx context.Context, jobID string) error {
	if err := s.RunExtraction(ctx, jobID); err != nil {
		return err
	}
	return s.RunDeepAnalysis(ctx, jobID)
}

func (s *citationServiceImpl) GetJob(ctx context.Context, jobID string) (*job.CitationJob, error) {
	return s.repo.FindByID(ctx, jobID)
}

// resolveElements returns the parsed claim elements for a context, reusing a
// cached decomposition when it is current and reparsing otherwise. The
// reparse is persisted best-effort.
func (s *citationServiceImpl) resolveElements(ctx context.Context, searchContextID, claimText string) ([]string, error) {
	cached, err := s.claims.GetClaimElements(ctx, searchContextID)
	if err == nil && cached != nil && cached.ParserVersion == claim.CurrentParserVersion && len(cached.Elements) > 0 {
		return cached.Elements, nil
	}

	elements, err := claim.ParseElements(claimText)
	if err != nil {
		return nil, err
	}
	if saveErr := s.claims.SaveParsedElements(ctx, &claim.ParsedElements{
		SearchContextID: searchContextID,
		Elements:        elements,
		ParserVersion:   claim.CurrentParserVersion,
	}); saveErr != nil {
		s.logger.Warn("failed to cache parsed claim elements",
			logging.String("search_context_id", searchContextID), logging.Err(saveErr))
	}
	return elements, nil
}

// failExtraction records a terminal extraction failure on the job, then
// returns the original error so synchronous callers still see it.
func (s *citationServiceImpl) failExtraction(ctx context.Context, j *job.CitationJob, status job.Status, cause error) error {
	if failErr := j.Fail(status, errors.GetCode(cause).String(), cause.Error()); failErr != nil {
		s.logger.Error("cannot record extraction failure",
			logging.String("job_id", j.ID), logging.Err(failErr))
		return cause
	}
	if saveErr := s.repo.Save(ctx, j); saveErr != nil {
		s.logger.Error("cannot persist extraction failure",
			logging.String("job_id", j.ID), logging.Err(saveErr))
		return cause
	}
	s.metrics.JobFinished(status.String())
	s.publishJobEvent(ctx, j)
	return cause
}

// failAnalysis records an analysis failure (COMPLETED -> ERROR_PROCESSING)
// and returns the original error.
func (s *citationServiceImpl) failAnalysis(ctx context.Context, j *job.CitationJob, cause error) error {
	if failErr := j.FailAnalysis(errors.GetCode(cause).String(), cause.Error()); failErr != nil {
		s.logger.Error("cannot record analysis failure",
			logging.String("job_id", j.ID), logging.Err(failErr))
		return cause
	}
	if saveErr := s.repo.Save(ctx, j); saveErr != nil {
		s.logger.Error("cannot persist analysis failure",
			logging.String("job_id", j.ID), logging.Err(saveErr))
	}
	s.metrics.JobFinished(job.StatusErrorProcessing.String())
	return cause
}

func (s *citationServiceImpl) publishJobEvent(ctx context.Context, j *job.CitationJob) {
	if s.publisher == nil {
		return
	}
	event := JobCompletedEvent{
		JobID:           j.ID,
		SearchContextID: j.SearchContextID,
		ReferenceNumber: j.ReferenceNumber,
		Status:          j.Status.String(),
	}
	if err := s.publisher.PublishJobCompleted(ctx, event); err != nil {
		s.logger.Warn("failed to publish job event", logging.String("job_id", j.ID), logging.Err(err))
	}
}
