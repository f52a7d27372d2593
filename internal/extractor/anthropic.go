package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"call-analytics-go/internal/clients"
)

const defaultAnthropicMaxTokens = 2048

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicOption configures an AnthropicGenerator.
type AnthropicOption func(*anthropicSettings)

type anthropicSettings struct {
	baseURL   string
	timeout   time.Duration
	maxTokens int64
}

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) AnthropicOption {
	return func(s *anthropicSettings) { s.baseURL = u }
}

// WithRequestTimeout bounds each API request.
func WithRequestTimeout(d time.Duration) AnthropicOption {
	return func(s *anthropicSettings) { s.timeout = d }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int64) AnthropicOption {
	return func(s *anthropicSettings) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// NewAnthropicGenerator creates a generator. SDK retries are disabled; the
// Extractor owns the retry policy.
func NewAnthropicGenerator(apiKey, model string, opts ...AnthropicOption) *AnthropicGenerator {
	s := anthropicSettings{maxTokens: defaultAnthropicMaxTokens}
	for _, opt := range opts {
		opt(&s)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	if s.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(s.timeout))
	}
	return &AnthropicGenerator{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: s.maxTokens,
	}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("anthropic: %w", &clients.StatusError{Code: apiErr.StatusCode, Body: apiErr.Error()})
		}
		return "", fmt.Errorf("anthropic: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: no text content in response")
}
