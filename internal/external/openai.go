package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"outbreakwatch/internal/types"
)

const systemPrompt = "You are an epidemiology assistant for a public-health team monitoring " +
	"waterborne disease. Be concise and factual. Do not invent numbers that are not in the input."

// OpenAIConfig configures OpenAIGenerator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // optional; overrides the public endpoint
	MaxTokens   int
	Temperature float32
	UserAgent   string
}

// OpenAIGenerator produces text with the OpenAI chat completions API. Requests
// are sent through a BaseClient so transient upstream failures are retried and
// a failing provider trips the breaker.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIGenerator creates a generator. httpClient may be nil, in which case
// a client without its own timeout is used and callers bound each call with a
// context deadline.
func NewOpenAIGenerator(cfg OpenAIConfig, httpClient *http.Client, opts ...BaseClientOption) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	opts = append([]BaseClientOption{WithFailureCode(types.ErrCodeUpstreamAI)}, opts...)
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = NewBaseClient(httpClient, "openai", DefaultRetryPolicy(), cfg.UserAgent, opts...)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate returns the first completion choice for prompt.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return "", appErr
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", types.NewAppErrorWithDetails(types.ErrCodeUpstreamAI,
				"openai rejected the request", err, map[string]any{"status": apiErr.HTTPStatusCode})
		}
		return "", types.NewAppError(types.ErrCodeUpstreamAI, "openai request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", types.NewAppError(types.ErrCodeUpstreamAI, "openai returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping reports whether the generator is configured. It does not call the
// provider; health checks must not spend tokens.
func (g *OpenAIGenerator) Ping(context.Context) error {
	if g == nil || g.client == nil {
		return fmt.Errorf("openai generator not configured")
	}
	return nil
}
