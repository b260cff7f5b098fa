// Package searchapi implements the client for the external semantic
// citation-search service: structured submission, single polls with status
// normalization, and the bounded poll-until-done loop.
package searchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/clausehound/citex/internal/config"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/pkg/errors"
)

// Outcome is the normalized terminal-or-not state of an external search job.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeCompleted
	OutcomeFailed
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NormalizeStatus maps the service's numeric status codes onto Outcomes:
// 1 means completed, 0 means still running, negative values carry a failure,
// anything else is outside the documented contract.
func NormalizeStatus(code int) Outcome {
	switch {
	case code == 1:
		return OutcomeCompleted
	case code == 0:
		return OutcomePending
	case code < 0:
		return OutcomeFailed
	default:
		return OutcomeUnknown
	}
}

// SubmitRequest is the search submission payload.
type SubmitRequest struct {
	SearchInputs    []string `json:"searchInputs"`
	ReferenceFilter *string  `json:"referenceFilter"`
	Threshold       float64  `json:"threshold"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type pollResponse struct {
	Status int             `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// PollResult is one normalized poll observation.
type PollResult struct {
	StatusCode int
	Outcome    Outcome
	// Result holds the raw match payload when Outcome is OutcomeCompleted.
	Result json.RawMessage
	// ErrorPayload holds the service-provided error text when Outcome is
	// OutcomeFailed.
	ErrorPayload string
}

// Client talks to the external citation-search service.
type Client struct {
	http        *resty.Client
	maxAttempts int
	interval    time.Duration
	threshold   float64
	logger      logging.Logger
}

// NewClient builds a Client from configuration. The base URL and API key are
// required; missing values are a configuration error at call time, so they
// are validated here once.
func NewClient(cfg config.SearchAPIConfig, logger logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.CodeConfig, "search API base URL is not configured")
	}
	if cfg.APIKey == "" {
		return nil, errors.New(errors.CodeConfig, "search API key is not configured")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	rc := resty.New()
	rc.SetBaseURL(cfg.BaseURL)
	rc.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	rc.SetHeader("Content-Type", "application/json")
	rc.SetTimeout(cfg.RequestTimeout)

	return &Client{
		http:        rc,
		maxAttempts: cfg.MaxPollingAttempts,
		interval:    cfg.PollingInterval,
		threshold:   cfg.DefaultThreshold,
		logger:      logger.Named("searchapi"),
	}, nil
}

// DefaultThreshold returns the configured relevance threshold for
// submissions that do not specify their own.
func (c *Client) DefaultThreshold() float64 { return c.threshold }

// Submit posts a search request and returns the external job ID. Failure to
// obtain an ID is fatal for this attempt and is not retried here.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	var out submitResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/search")
	if err != nil {
		return "", errors.Wrap(err, errors.CodeExternalAPI, "search submission failed")
	}
	if resp.IsError() {
		return "", errors.Newf(errors.CodeExternalAPI,
			"search submission returned HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if out.ID == "" {
		return "", errors.New(errors.CodeExternalAPI, "search submission response has no job ID")
	}

	c.logger.Info("search submitted",
		logging.String("external_job_id", out.ID),
		logging.Int("search_inputs", len(req.SearchInputs)))
	return out.ID, nil
}

// Poll fetches the current status of an external job. A 404 is surfaced as a
// distinct non-retryable not-found error; any other transport or HTTP error
// is a retryable external API error.
func (c *Client) Poll(ctx context.Context, externalJobID string) (*PollResult, error) {
	var out pollResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("id", externalJobID).
		Get("/result/{id}")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExternalAPI, "poll request failed")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, errors.Newf(errors.CodeExternalJobNotFound,
			"external job %s not found", externalJobID)
	}
	if resp.IsError() {
		return nil, errors.Newf(errors.CodeExternalAPI,
			"poll returned HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	return &PollResult{
		StatusCode:   out.Status,
		Outcome:      NormalizeStatus(out.Status),
		Result:       out.Result,
		ErrorPayload: out.Error,
	}, nil
}

// PollUntilDone polls the external job until it reaches a terminal outcome
// (completed or failed), the attempt budget is exhausted, or the context is
// cancelled. Not-found and out-of-contract statuses abort immediately; all
// other poll errors consume an attempt and are retried.
func (c *Client) PollUntilDone(ctx context.Context, externalJobID string) (*PollResult, error) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		res, err := c.Poll(ctx, externalJobID)
		switch {
		case err != nil && errors.IsCode(err, errors.CodeExternalJobNotFound):
			return nil, err
		case err != nil:
			c.logger.Warn("poll attempt failed",
				logging.String("external_job_id", externalJobID),
				logging.Int("attempt", attempt),
				logging.Err(err))
		case res.Outcome == OutcomeCompleted || res.Outcome == OutcomeFailed:
			return res, nil
		case res.Outcome == OutcomeUnknown:
			return nil, errors.Newf(errors.CodeUnknownStatus,
				"external job %s reported undocumented status %d", externalJobID, res.StatusCode)
		}

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.CodePollingTimeout,
				fmt.Sprintf("polling cancelled for external job %s", externalJobID))
		case <-time.After(c.interval):
		}
	}
	return nil, errors.Newf(errors.CodePollingTimeout,
		"external job %s did not finish within %d attempts", externalJobID, c.maxAttempts)
}
