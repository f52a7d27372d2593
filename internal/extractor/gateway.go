package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"call-analytics-go/internal/clients"
)

// GatewayGenerator calls an OpenAI-compatible chat completions endpoint.
type GatewayGenerator struct {
	url         string
	apiKey      string
	model       string
	temperature float64
	http        *clients.HTTP
}

// NewGatewayGenerator creates a generator for the gateway at url.
func NewGatewayGenerator(url, apiKey, model string, timeout time.Duration) *GatewayGenerator {
	return &GatewayGenerator{url: url, apiKey: apiKey, model: model, http: clients.NewHTTP(timeout)}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type gatewayError struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *GatewayGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + g.apiKey}

	var body []byte
	if err := g.http.PostJSON(ctx, g.url, headers, req, &body); err != nil {
		return "", fmt.Errorf("llm gateway: %w", err)
	}

	if content := extractContentFromChoices(body); content != "" {
		return content, nil
	}
	var ge gatewayError
	if json.Unmarshal(body, &ge) == nil && ge.Error != nil {
		return "", fmt.Errorf("llm gateway error: %s", ge.Error.Message)
	}
	return "", fmt.Errorf("llm gateway: no choices content in response")
}
