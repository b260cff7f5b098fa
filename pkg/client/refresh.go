package client

import "context"

type staleListResponse struct {
	StaleJobIDs []string `json:"staleJobIds"`
	Total       int      `json:"total"`
}

type refreshResponse struct {
	Refreshed map[string]string `json:"refreshed"`
	Total     int               `json:"total"`
}

// RefreshClient exposes the staleness endpoints.
type RefreshClient struct {
	client *Client
}

// StaleJobs lists the IDs of the jobs whose claim hash or parser version is
// out of date for the search context.
func (rc *RefreshClient) StaleJobs(ctx context.Context, searchContextID string) ([]string, error) {
	var out staleListResponse
	resp, err := rc.client.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("searchContextId", searchContextID).
		Get("/api/v1/claims/{searchContextId}/stale-jobs")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return out.StaleJobIDs, nil
}

// Refresh supersedes every stale job of the search context and returns a
// mapping from old job ID to the replacing job ID.
func (rc *RefreshClient) Refresh(ctx context.Context, searchContextID string) (map[string]string, error) {
	var out refreshResponse
	resp, err := rc.client.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("searchContextId", searchContextID).
		Post("/api/v1/claims/{searchContextId}/refresh")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return out.Refreshed, nil
}
