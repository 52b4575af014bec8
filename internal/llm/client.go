package llm

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/sessioncast/sessioncast-cli/internal/protocol/wire"
	"github.com/sessioncast/sessioncast-cli/pkg/logger"
	"github.com/sessioncast/sessioncast-cli/pkg/types"
)

const defaultRequestTimeout = 120 * time.Second

// Config points the proxy at an OpenAI-compatible chat completion endpoint.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string
	// APIKey is the bearer token for the upstream provider.
	APIKey string
	// Model is the default model when a request does not name one.
	Model string
	// Timeout bounds one upstream call.
	Timeout time.Duration
}

// Client proxies chat requests from the control channel to the configured
// provider. It never interprets conversation content.
type Client struct {
	cfg  Config
	http *resty.Client
}

// New creates the LLM proxy client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		http.SetAuthToken(cfg.APIKey)
	}

	return &Client{cfg: cfg, http: http}, nil
}

// chatRequestBody is the upstream chat-completion request shape.
type chatRequestBody struct {
	Model       string              `json:"model"`
	Messages    []types.ChatMessage `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

// upstreamError is the error envelope OpenAI-compatible providers return.
type upstreamError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat forwards one chat request and returns the completion. Streaming is
// not proxied: stream=true requests are answered with a single complete
// response.
func (c *Client) Chat(ctx context.Context, req *wire.ChatRequest) (*types.ChatResult, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	if model == "" {
		return nil, fmt.Errorf("no model requested and no default configured")
	}

	body := chatRequestBody{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var result types.ChatResult
	var apiErr upstreamError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("llm request failed: %s", msg)
	}

	logger.Debugf("llm chat: model=%s choices=%d tokens=%d",
		result.Model, len(result.Choices), result.Usage.TotalTokens)
	return &result, nil
}
