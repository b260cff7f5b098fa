// Package client is the Go SDK for the citex HTTP API. It wraps the job,
// match and refresh endpoints behind typed methods and maps API error
// bodies onto APIError values.
package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Version is the SDK version reported in the User-Agent header.
const Version = "0.1.0"

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"requestId"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("citex: %s (HTTP %d): %s [request_id=%s]", e.Code, e.StatusCode, e.Message, e.RequestID)
}

// IsNotFound reports whether the error is a 404.
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsServerError reports whether the error is a 5xx.
func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 && e.StatusCode < 600 }

// errorBody mirrors the API's error response shape.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client talks to one citex API server.
type Client struct {
	http *resty.Client

	jobs    *JobsClient
	refresh *RefreshClient
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.SetTimeout(timeout)
		}
	}
}

// WithRetry enables bounded retries with backoff for transient failures.
func WithRetry(count int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		if count <= 0 {
			return
		}
		c.http.SetRetryCount(count)
		if waitMin > 0 {
			c.http.SetRetryWaitTime(waitMin)
		}
		if waitMax >= waitMin && waitMax > 0 {
			c.http.SetRetryMaxWaitTime(waitMax)
		}
		c.http.AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		})
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.http.SetHeader("User-Agent", userAgent)
		}
	}
}

// WithHTTPClient substitutes the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = resty.NewWithClient(hc).
				SetBaseURL(c.http.BaseURL).
				SetHeader("User-Agent", fmt.Sprintf("citex-go/%s", Version)).
				SetHeader("Content-Type", "application/json")
		}
	}
}

// NewClient validates the base URL and builds the SDK client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("citex: baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("citex: invalid baseURL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("citex: baseURL scheme must be http or https")
	}

	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("User-Agent", fmt.Sprintf("citex-go/%s", Version)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	c := &Client{http: rc}
	for _, opt := range opts {
		opt(c)
	}

	c.jobs = &JobsClient{client: c}
	c.refresh = &RefreshClient{client: c}
	return c, nil
}

// Jobs exposes the citation-job endpoints.
func (c *Client) Jobs() *JobsClient { return c.jobs }

// Refresh exposes the staleness endpoints.
func (c *Client) Refresh() *RefreshClient { return c.refresh }

// apiError converts a non-success response to an *APIError.
func apiError(resp *resty.Response) error {
	var body errorBody
	code := "UNKNOWN"
	message := http.StatusText(resp.StatusCode())
	if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr == nil && body.Code != "" {
		code = body.Code
		message = body.Message
	}
	return &APIError{
		StatusCode: resp.StatusCode(),
		Code:       code,
		Message:    message,
		RequestID:  resp.Header().Get("X-Request-ID"),
	}
}
