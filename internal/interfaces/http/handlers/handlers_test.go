package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPipeline struct {
	queueFn func(ctx context.Context, searchContextID, referenceNumber string) (*job.CitationJob, error)
	getFn   func(ctx context.Context, jobID string) (*job.CitationJob, error)
}

func (s *stubPipeline) QueueExtraction(ctx context.Context, searchContextID, referenceNumber string) (*job.CitationJob, error) {
	return s.queueFn(ctx, searchContextID, referenceNumber)
}

func (s *stubPipeline) GetJob(ctx context.Context, jobID string) (*job.CitationJob, error) {
	return s.getFn(ctx, jobID)
}

func (s *stubPipeline) RunExtraction(context.Context, string) error   { return nil }
func (s *stubPipeline) RunDeepAnalysis(context.Context, string) error { return nil }
func (s *stubPipeline) ProcessJob(context.Context, string) error      { return nil }

type stubRepo struct {
	job.Repository
	listFn func(ctx context.Context, searchContextID string) ([]*job.CitationJob, error)
}

func (s *stubRepo) ListBySearchContext(ctx context.Context, searchContextID string) ([]*job.CitationJob, error) {
	return s.listFn(ctx, searchContextID)
}

type stubMatches struct {
	listFn func(ctx context.Context, jobID string) ([]job.MatchRecord, error)
}

func (s *stubMatches) ReplaceForJob(context.Context, string, []job.MatchRecord) error { return nil }

func (s *stubMatches) ListByJob(ctx context.Context, jobID string) ([]job.MatchRecord, error) {
	return s.listFn(ctx, jobID)
}

type stubCoordinator struct {
	refreshFn func(ctx context.Context, searchContextID string) (map[string]string, error)
	staleFn   func(ctx context.Context, searchContextID string) ([]*job.CitationJob, error)
}

func (s *stubCoordinator) RefreshStale(ctx context.Context, searchContextID string) (map[string]string, error) {
	return s.refreshFn(ctx, searchContextID)
}

func (s *stubCoordinator) StaleJobs(ctx context.Context, searchContextID string) ([]*job.CitationJob, error) {
	return s.staleFn(ctx, searchContextID)
}

func perform(t *testing.T, handler gin.HandlerFunc, method, path string, params gin.Params, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, path, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	handler(c)
	return w
}

func TestJobHandler_Queue(t *testing.T) {
	pipeline := &stubPipeline{
		queueFn: func(_ context.Context, searchContextID, referenceNumber string) (*job.CitationJob, error) {
			if searchContextID != "ctx-1" || referenceNumber != "US1234567B2" {
				t.Fatalf("unexpected args: %s %s", searchContextID, referenceNumber)
			}
			return &job.CitationJob{ID: "job-1", SearchContextID: searchContextID, ReferenceNumber: referenceNumber, Status: job.StatusPending}, nil
		},
	}
	h := NewJobHandler(pipeline, nil, nil)

	w := perform(t, h.Queue, http.MethodPost, "/api/v1/citation-jobs", nil,
		`{"searchContextId":"ctx-1","referenceNumber":"US1234567B2"}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var got job.CitationJob
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "job-1" || got.Status != job.StatusPending {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestJobHandler_Queue_MissingContext(t *testing.T) {
	h := NewJobHandler(&stubPipeline{}, nil, nil)

	w := perform(t, h.Queue, http.MethodPost, "/api/v1/citation-jobs", nil, `{"referenceNumber":"US1"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "searchContextId") {
		t.Fatalf("expected field name in error, got %s", w.Body.String())
	}
}

func TestJobHandler_Get_NotFound(t *testing.T) {
	pipeline := &stubPipeline{
		getFn: func(_ context.Context, jobID string) (*job.CitationJob, error) {
			return nil, errors.New(errors.CodeJobNotFound, "citation job not found")
		},
	}
	h := NewJobHandler(pipeline, nil, nil)

	w := perform(t, h.Get, http.MethodGet, "/api/v1/citation-jobs/missing",
		gin.Params{{Key: "id", Value: "missing"}}, "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != string(errors.CodeJobNotFound) {
		t.Fatalf("expected job-not-found code, got %s", resp.Code)
	}
}

func TestJobHandler_Get_InternalMasked(t *testing.T) {
	pipeline := &stubPipeline{
		getFn: func(_ context.Context, _ string) (*job.CitationJob, error) {
			return nil, errors.New(errors.CodeDatabaseError, "pq: connection refused to 10.0.0.5")
		},
	}
	h := NewJobHandler(pipeline, nil, nil)

	w := perform(t, h.Get, http.MethodGet, "/api/v1/citation-jobs/job-1",
		gin.Params{{Key: "id", Value: "job-1"}}, "")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Fatalf("internal detail leaked: %s", w.Body.String())
	}
}

func TestJobHandler_ListByContext_Empty(t *testing.T) {
	repo := &stubRepo{
		listFn: func(_ context.Context, _ string) ([]*job.CitationJob, error) {
			return nil, nil
		},
	}
	h := NewJobHandler(&stubPipeline{}, repo, nil)

	w := perform(t, h.ListByContext, http.MethodGet, "/api/v1/search-contexts/ctx-1/citation-jobs",
		gin.Params{{Key: "searchContextId", Value: "ctx-1"}}, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"jobs":[]`) {
		t.Fatalf("expected empty array, got %s", w.Body.String())
	}
}

func TestJobHandler_Matches(t *testing.T) {
	pipeline := &stubPipeline{
		getFn: func(_ context.Context, jobID string) (*job.CitationJob, error) {
			return &job.CitationJob{ID: jobID, Status: job.StatusCompleted}, nil
		},
	}
	matches := &stubMatches{
		listFn: func(_ context.Context, jobID string) ([]job.MatchRecord, error) {
			return []job.MatchRecord{
				{JobID: jobID, ElementText: "a processor", CitationText: "[0042]", Score: 0.91},
			}, nil
		},
	}
	h := NewJobHandler(pipeline, nil, matches)

	w := perform(t, h.Matches, http.MethodGet, "/api/v1/citation-jobs/job-1/matches",
		gin.Params{{Key: "id", Value: "job-1"}}, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "a processor") || !strings.Contains(w.Body.String(), `"total":1`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestJobHandler_Matches_JobMissing(t *testing.T) {
	pipeline := &stubPipeline{
		getFn: func(_ context.Context, _ string) (*job.CitationJob, error) {
			return nil, errors.New(errors.CodeJobNotFound, "citation job not found")
		},
	}
	called := false
	matches := &stubMatches{
		listFn: func(_ context.Context, _ string) ([]job.MatchRecord, error) {
			called = true
			return nil, nil
		},
	}
	h := NewJobHandler(pipeline, nil, matches)

	w := perform(t, h.Matches, http.MethodGet, "/api/v1/citation-jobs/gone/matches",
		gin.Params{{Key: "id", Value: "gone"}}, "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if called {
		t.Fatal("match store should not be queried when the job is missing")
	}
}

func TestRefreshHandler_Refresh(t *testing.T) {
	coord := &stubCoordinator{
		refreshFn: func(_ context.Context, searchContextID string) (map[string]string, error) {
			if searchContextID != "ctx-1" {
				t.Fatalf("unexpected context id %s", searchContextID)
			}
			return map[string]string{"old-1": "new-1"}, nil
		},
	}
	h := NewRefreshHandler(coord)

	w := perform(t, h.Refresh, http.MethodPost, "/api/v1/search-contexts/ctx-1/refresh",
		gin.Params{{Key: "searchContextId", Value: "ctx-1"}}, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"old-1":"new-1"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRefreshHandler_Refresh_ClaimMissing(t *testing.T) {
	coord := &stubCoordinator{
		refreshFn: func(_ context.Context, _ string) (map[string]string, error) {
			return nil, errors.New(errors.CodeClaimNotFound, "claim not found")
		},
	}
	h := NewRefreshHandler(coord)

	w := perform(t, h.Refresh, http.MethodPost, "/api/v1/search-contexts/gone/refresh",
		gin.Params{{Key: "searchContextId", Value: "gone"}}, "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRefreshHandler_Stale(t *testing.T) {
	coord := &stubCoordinator{
		staleFn: func(_ context.Context, _ string) ([]*job.CitationJob, error) {
			return []*job.CitationJob{{ID: "job-1"}, {ID: "job-2"}}, nil
		},
	}
	h := NewRefreshHandler(coord)

	w := perform(t, h.Stale, http.MethodGet, "/api/v1/search-contexts/ctx-1/stale-jobs",
		gin.Params{{Key: "searchContextId", Value: "ctx-1"}}, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"total":2`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	healthy := HealthCheckFunc{CheckName: "postgres", Fn: func(context.Context) error { return nil }}
	failing := HealthCheckFunc{CheckName: "redis", Fn: func(context.Context) error {
		return errors.New(errors.CodeCacheError, "dial tcp: connection refused")
	}}

	h := NewHealthHandler(healthy, failing)
	w := perform(t, h.Readiness, http.MethodGet, "/readyz", nil, "")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["postgres"] != "ok" || resp.Checks["redis"] == "ok" {
		t.Fatalf("unexpected readiness body: %+v", resp)
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler()
	w := perform(t, h.Liveness, http.MethodGet, "/healthz", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
