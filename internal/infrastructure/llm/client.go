// Package llm implements the chat-completion client used by deep analysis
// and suggestion validation, including JSON response mode and the salvage
// decoder for truncated model output.
package llm

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/clausehound/citex/internal/config"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/pkg/errors"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is the content of a successful chat-completion call.
type Completion struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Truncated reports whether the provider stopped generation at the token
// budget, a strong signal that JSON output is incomplete.
func (c *Completion) Truncated() bool {
	return c.FinishReason == "length"
}

// Client talks to an OpenAI-compatible chat-completion endpoint.
type Client struct {
	http        *resty.Client
	model       string
	temperature float64
	maxTokens   int
	logger      logging.Logger
}

// NewClient builds a Client from configuration; the API key, base URL, and
// model are required.
func NewClient(cfg config.LLMConfig, logger logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.CodeConfig, "LLM base URL is not configured")
	}
	if cfg.APIKey == "" {
		return nil, errors.New(errors.CodeConfig, "LLM API key is not configured")
	}
	if cfg.Model == "" {
		return nil, errors.New(errors.CodeConfig, "LLM model is not configured")
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
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger.Named("llm"),
	}, nil
}

// CompleteJSON requests a completion in json_object mode and returns its
// content. Transport failures, provider errors, and empty responses are all
// normalized to AI-prefixed error codes.
func (c *Client) CompleteJSON(ctx context.Context, messages []Message) (*Completion, error) {
	req := completionRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	started := time.Now()
	var out completionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLLMRequestFailed, "chat completion request failed")
	}
	if resp.IsError() {
		msg := resp.String()
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, errors.Newf(errors.CodeLLMRequestFailed,
			"chat completion returned HTTP %d: %s", resp.StatusCode(), msg)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, errors.New(errors.CodeLLMInvalidResponse, "chat completion response has no content")
	}

	choice := out.Choices[0]
	c.logger.Debug("chat completion finished",
		logging.String("model", c.model),
		logging.String("finish_reason", choice.FinishReason),
		logging.Int("prompt_tokens", out.Usage.PromptTokens),
		logging.Int("completion_tokens", out.Usage.CompletionTokens),
		logging.Duration("elapsed", time.Since(started)))

	return &Completion{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        out.Usage,
	}, nil
}
