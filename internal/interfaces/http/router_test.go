package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/internal/interfaces/http/handlers"
	"github.com/clausehound/citex/pkg/errors"
)

type fakePipeline struct {
	jobs map[string]*job.CitationJob
}

func (f *fakePipeline) QueueExtraction(_ context.Context, searchContextID, referenceNumber string) (*job.CitationJob, error) {
	j := &job.CitationJob{ID: "job-new", SearchContextID: searchContextID, ReferenceNumber: referenceNumber, Status: job.StatusPending}
	f.jobs[j.ID] = j
	return j, nil
}

func (f *fakePipeline) GetJob(_ context.Context, jobID string) (*job.CitationJob, error) {
	if j, ok := f.jobs[jobID]; ok {
		return j, nil
	}
	return nil, errors.New(errors.CodeJobNotFound, "citation job not found")
}

func (f *fakePipeline) RunExtraction(context.Context, string) error   { return nil }
func (f *fakePipeline) RunDeepAnalysis(context.Context, string) error { return nil }
func (f *fakePipeline) ProcessJob(context.Context, string) error      { return nil }

type fakeRepo struct {
	job.Repository
}

func (f *fakeRepo) ListBySearchContext(context.Context, string) ([]*job.CitationJob, error) {
	return nil, nil
}

type fakeMatches struct{}

func (fakeMatches) ReplaceForJob(context.Context, string, []job.MatchRecord) error { return nil }
func (fakeMatches) ListByJob(context.Context, string) ([]job.MatchRecord, error)   { return nil, nil }

type fakeCoordinator struct{}

func (fakeCoordinator) RefreshStale(context.Context, string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (fakeCoordinator) StaleJobs(context.Context, string) ([]*job.CitationJob, error) {
	return nil, nil
}

func newTestRouter() http.Handler {
	pipeline := &fakePipeline{jobs: map[string]*job.CitationJob{
		"job-1": {ID: "job-1", SearchContextID: "ctx-1", Status: job.StatusCompleted},
	}}
	return SetupRouter(RouterDeps{
		Pipeline: pipeline,
		Refresh:  fakeCoordinator{},
		Jobs:     &fakeRepo{},
		Matches:  fakeMatches{},
		Checkers: []handlers.HealthChecker{
			handlers.HealthCheckFunc{CheckName: "postgres", Fn: func(context.Context) error { return nil }},
		},
		Mode: "test",
	})
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter()

	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodPost, "/api/v1/citation-jobs", `{"searchContextId":"ctx-1"}`, http.StatusAccepted},
		{http.MethodGet, "/api/v1/citation-jobs/job-1", "", http.StatusOK},
		{http.MethodGet, "/api/v1/citation-jobs/nope", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/citation-jobs/job-1/matches", "", http.StatusOK},
		{http.MethodGet, "/api/v1/search-contexts/ctx-1/citation-jobs", "", http.StatusOK},
		{http.MethodGet, "/api/v1/claims/ctx-1/stale-jobs", "", http.StatusOK},
		{http.MethodPost, "/api/v1/claims/ctx-1/refresh", "", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		if tc.body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.want, w.Code, w.Body.String())
		}
	}
}

func TestRouter_MetricsRouteOptional(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected /metrics to be unmounted, got %d", w.Code)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/citation-jobs/job-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated X-Request-ID header")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/citation-jobs/job-1", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "caller-supplied" {
		t.Fatalf("expected caller request id to be echoed, got %q", got)
	}
}
