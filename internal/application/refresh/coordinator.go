// Package refresh implements staleness detection and re-extraction: jobs
// whose claim hash or parser version is out of date are superseded by fresh
// jobs, never mutated.
package refresh

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clausehound/citex/internal/application/citation"
	"github.com/clausehound/citex/internal/domain/claim"
	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/pkg/errors"
)

// Coordinator detects stale jobs for a search context and refreshes them.
type Coordinator interface {
	// RefreshStale refreshes every stale job of the search context and
	// returns a mapping from old job ID to new job ID for the refreshes
	// that succeeded. A failed refresh is logged and omitted; it never
	// blocks or rolls back the others.
	RefreshStale(ctx context.Context, searchContextID string) (map[string]string, error)

	// StaleJobs returns the currently stale jobs without refreshing them.
	StaleJobs(ctx context.Context, searchContextID string) ([]*job.CitationJob, error)
}

// Deps holds the dependencies for the refresh coordinator.
type Deps struct {
	Repo     job.Repository
	Claims   claim.Source
	Pipeline citation.Service
	Logger   logging.Logger

	// AnalysisWait bounds how long a refresh waits for deepAnalysisJson to
	// appear on the new job row.
	AnalysisWait time.Duration

	// RowPollInterval is how often the job row is re-read while waiting.
	RowPollInterval time.Duration

	// MaxConcurrent bounds how many references refresh at once.
	MaxConcurrent int
}

type coordinatorImpl struct {
	repo     job.Repository
	claims   claim.Source
	pipeline citation.Service
	logger   logging.Logger

	analysisWait    time.Duration
	rowPollInterval time.Duration
	maxConcurrent   int
}

// NewCoordinator constructs the refresh coordinator.
func NewCoordinator(deps Deps) Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	analysisWait := deps.AnalysisWait
	if analysisWait <= 0 {
		analysisWait = 60 * time.Second
	}
	rowPollInterval := deps.RowPollInterval
	if rowPollInterval <= 0 {
		rowPollInterval = 500 * time.Millisecond
	}
	maxConcurrent := deps.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &coordinatorImpl{
		repo:            deps.Repo,
		claims:          deps.Claims,
		pipeline:        deps.Pipeline,
		logger:          logger.Named("refresh"),
		analysisWait:    analysisWait,
		rowPollInterval: rowPollInterval,
		maxConcurrent:   maxConcurrent,
	}
}

// StaleJobs selects the jobs whose recorded hash or parser version no longer
// matches the current claim.
func (c *coordinatorImpl) StaleJobs(ctx context.Context, searchContextID string) ([]*job.CitationJob, error) {
	claimText, err := c.claims.GetClaimText(ctx, searchContextID)
	if err != nil {
		return nil, err
	}
	currentHash := claim.Hash(claimText)

	jobs, err := c.repo.ListBySearchContext(ctx, searchContextID)
	if err != nil {
		return nil, err
	}

	var stale []*job.CitationJob
	for _, j := range jobs {
		if claim.IsStale(currentHash, j.Claim1Hash, claim.CurrentParserVersion, j.ParserVersionUsed) {
			stale = append(stale, j)
		}
	}
	return stale, nil
}

func (c *coordinatorImpl) RefreshStale(ctx context.Context, searchContextID string) (map[string]string, error) {
	claimText, err := c.claims.GetClaimText(ctx, searchContextID)
	if err != nil {
		return nil, err
	}
	currentHash := claim.Hash(claimText)

	jobs, err := c.repo.ListBySearchContext(ctx, searchContextID)
	if err != nil {
		return nil, err
	}

	var stale []*job.CitationJob
	hashChanged := false
	for _, j := range jobs {
		if !claim.IsStale(currentHash, j.Claim1Hash, claim.CurrentParserVersion, j.ParserVersionUsed) {
			continue
		}
		stale = append(stale, j)
		if j.Claim1Hash != currentHash {
			hashChanged = true
		}
	}
	if len(stale) == 0 {
		return map[string]string{}, nil
	}

	// The claim text changed or no decomposition is cached: reparse so the
	// refresh runs with fresh search inputs rather than re-running old ones.
	if err := c.reparseIfNeeded(ctx, searchContextID, claimText, hashChanged); err != nil {
		return nil, err
	}

	targets := newestPerReference(stale)

	mapping := make(map[string]string)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for _, old := range targets {
		old := old
		g.Go(func() error {
			newID, refreshErr := c.refreshOne(gctx, old, currentHash)
			if refreshErr != nil {
				c.logger.Warn("refresh failed for reference",
					logging.String("old_job_id", old.ID),
					logging.String("reference_number", old.ReferenceNumber),
					logging.Err(refreshErr))
				return nil // one failure never blocks the others
			}
			mu.Lock()
			mapping[old.ID] = newID
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return mapping, nil
}

func (c *coordinatorImpl) reparseIfNeeded(ctx context.Context, searchContextID, claimText string, hashChanged bool) error {
	cached, err := c.claims.GetClaimElements(ctx, searchContextID)
	haveCached := err == nil && cached != nil && len(cached.Elements) > 0

	if !hashChanged && haveCached && cached.ParserVersion == claim.CurrentParserVersion {
		return nil
	}

	elements, err := claim.ParseElements(claimText)
	if err != nil {
		return err
	}
	if saveErr := c.claims.SaveParsedElements(ctx, &claim.ParsedElements{
		SearchContextID: searchContextID,
		Elements:        elements,
		ParserVersion:   claim.CurrentParserVersion,
	}); saveErr != nil {
		// Best-effort: a failed persist does not abort the refresh.
		c.logger.Warn("failed to persist reparsed claim elements",
			logging.String("search_context_id", searchContextID),
			logging.Err(saveErr))
	}
	return nil
}

// refreshOne creates the superseding job and runs it through the pipeline,
// waiting for analysis output to appear on the new row.
func (c *coordinatorImpl) refreshOne(ctx context.Context, old *job.CitationJob, currentHash string) (string, error) {
	fresh, err := job.NewSuperseding(old, currentHash, claim.CurrentParserVersion)
	if err != nil {
		return "", err
	}
	if err := c.repo.Create(ctx, fresh); err != nil {
		return "", err
	}

	if err := c.pipeline.RunExtraction(ctx, fresh.ID); err != nil {
		return "", err
	}

	// Analysis runs detached, the way the rest of the system produces it;
	// the refresh only waits for the result to land on the row.
	go func() {
		if err := c.pipeline.RunDeepAnalysis(context.Background(), fresh.ID); err != nil {
			c.logger.Warn("refresh analysis failed",
				logging.String("job_id", fresh.ID), logging.Err(err))
		}
	}()

	if err := c.awaitAnalysis(ctx, fresh.ID); err != nil {
		return "", err
	}
	return fresh.ID, nil
}

// awaitAnalysis polls the job row until deepAnalysisJson is populated or the
// wait budget is exhausted.
func (c *coordinatorImpl) awaitAnalysis(ctx context.Context, jobID string) error {
	deadline := time.Now().Add(c.analysisWait)
	for {
		j, err := c.repo.FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		if j.HasAnalysis() {
			return nil
		}
		if j.Status == job.StatusErrorProcessing {
			return errors.New(errors.CodeAnalysisFailed, "analysis failed during refresh").
				WithDetail("job=" + jobID)
		}
		if time.Now().After(deadline) {
			return errors.Timeout("deep analysis did not finish within the refresh wait budget").
				WithDetail("job=" + jobID)
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.CodeTimeout, "refresh cancelled")
		case <-time.After(c.rowPollInterval):
		}
	}
}

// newestPerReference keeps one job per distinct reference number, preferring
// the most recently created.
func newestPerReference(jobs []*job.CitationJob) []*job.CitationJob {
	byRef := make(map[string]*job.CitationJob)
	var order []string
	for _, j := range jobs {
		cur, ok := byRef[j.ReferenceNumber]
		if !ok {
			order = append(order, j.ReferenceNumber)
			byRef[j.ReferenceNumber] = j
			continue
		}
		if j.CreatedAt.After(cur.CreatedAt) {
			byRef[j.ReferenceNumber] = j
		}
	}
	out := make([]*job.CitationJob, 0, len(order))
	for _, ref := range order {
		out = append(out, byRef[ref])
	}
	return out
}
