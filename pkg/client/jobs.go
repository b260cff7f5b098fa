package client

import (
	"context"
	"time"
)

// CitationJob mirrors the API's job representation.
type CitationJob struct {
	ID                   string     `json:"id"`
	SearchContextID      string     `json:"searchContextId"`
	ReferenceNumber      string     `json:"referenceNumber,omitempty"`
	Status               string     `json:"status"`
	ExternalJobID        string     `json:"externalJobId,omitempty"`
	LastCheckedAt        *time.Time `json:"lastCheckedAt,omitempty"`
	RawResultData        string     `json:"rawResultData,omitempty"`
	DeepAnalysisJSON     string     `json:"deepAnalysisJson,omitempty"`
	ExaminerAnalysisJSON string     `json:"examinerAnalysisJson,omitempty"`
	Claim1Hash           string     `json:"claim1Hash,omitempty"`
	ParserVersionUsed    int        `json:"parserVersionUsed"`
	ErrorCode            string     `json:"error,omitempty"`
	ErrorMessage         string     `json:"errorMessage,omitempty"`
	Supersedes           string     `json:"supersedes,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j *CitationJob) Terminal() bool {
	switch j.Status {
	case "COMPLETED", "FAILED_EXTERNAL", "ERROR_PROCESSING", "TIMEOUT", "NOT_FOUND":
		return true
	}
	return false
}

// Match mirrors one citation match row.
type Match struct {
	JobID           string  `json:"jobId"`
	SearchContextID string  `json:"searchContextId"`
	ReferenceNumber string  `json:"referenceNumber"`
	ElementText     string  `json:"elementText"`
	CitationText    string  `json:"citationText"`
	ParagraphText   string  `json:"paragraphText,omitempty"`
	Score           float64 `json:"score"`
	Location        string  `json:"location,omitempty"`
}

// QueueJobRequest is the payload for queueing an extraction.
type QueueJobRequest struct {
	SearchContextID string `json:"searchContextId"`
	ReferenceNumber string `json:"referenceNumber,omitempty"`
}

type jobListResponse struct {
	Jobs  []*CitationJob `json:"jobs"`
	Total int            `json:"total"`
}

type matchListResponse struct {
	Matches []Match `json:"matches"`
	Total   int     `json:"total"`
}

// JobsClient exposes the citation-job endpoints.
type JobsClient struct {
	client *Client
}

// Queue creates a PENDING job and starts extraction in the background.
func (jc *JobsClient) Queue(ctx context.Context, req QueueJobRequest) (*CitationJob, error) {
	var out CitationJob
	resp, err := jc.client.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/v1/citation-jobs")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return &out, nil
}

// Get fetches the current state of one job.
func (jc *JobsClient) Get(ctx context.Context, jobID string) (*CitationJob, error) {
	var out CitationJob
	resp, err := jc.client.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("id", jobID).
		Get("/api/v1/citation-jobs/{id}")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return &out, nil
}

// ListByContext lists the jobs of a search context, newest first.
func (jc *JobsClient) ListByContext(ctx context.Context, searchContextID string) ([]*CitationJob, error) {
	var out jobListResponse
	resp, err := jc.client.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("searchContextId", searchContextID).
		Get("/api/v1/search-contexts/{searchContextId}/citation-jobs")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return out.Jobs, nil
}

// Matches returns the citation matches derived from a completed job.
func (jc *JobsClient) Matches(ctx context.Context, jobID string) ([]Match, error) {
	var out matchListResponse
	resp, err := jc.client.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("id", jobID).
		Get("/api/v1/citation-jobs/{id}/matches")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return out.Matches, nil
}

// WaitOptions bounds Wait's polling loop.
type WaitOptions struct {
	// Interval between polls; defaults to 2s.
	Interval time.Duration
}

// Wait polls the job until it reaches a terminal status or ctx is done.
func (jc *JobsClient) Wait(ctx context.Context, jobID string, opts WaitOptions) (*CitationJob, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		j, err := jc.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if j.Terminal() {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-ticker.C:
		}
	}
}
