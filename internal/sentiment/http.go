package sentiment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"call-analytics-go/internal/clients"
	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/types"
)

type classifyRequest struct {
	Texts []string `json:"texts"`
}

type classifyResponse struct {
	Labels []string    `json:"labels"`
	Logits [][]float64 `json:"logits"`
}

// HTTPClassifier calls a hosted text-classification model at <baseURL>/classify.
type HTTPClassifier struct {
	url    string
	labels []string
	http   *clients.HTTP
	retry  clients.RetryPolicy
	log    *logger.Logger
}

// HTTPOption configures an HTTPClassifier.
type HTTPOption func(*HTTPClassifier)

// WithLabels overrides the expected label set.
func WithLabels(labels ...string) HTTPOption {
	return func(c *HTTPClassifier) {
		if len(labels) > 0 {
			c.labels = labels
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClassifier) { c.http = clients.NewHTTP(d) }
}

// WithRetry sets the retry policy.
func WithRetry(p clients.RetryPolicy) HTTPOption {
	return func(c *HTTPClassifier) { c.retry = p }
}

// WithClassifierLogger sets the logger.
func WithClassifierLogger(l *logger.Logger) HTTPOption {
	return func(c *HTTPClassifier) {
		if l != nil {
			c.log = l
		}
	}
}

// NewHTTPClassifier creates a classifier for the service at baseURL.
func NewHTTPClassifier(baseURL string, opts ...HTTPOption) *HTTPClassifier {
	c := &HTTPClassifier{
		url:    strings.TrimRight(baseURL, "/") + "/classify",
		labels: defaultLabels,
		http:   clients.NewHTTP(0),
		retry:  clients.DefaultRetry,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Component("sentiment-http")
	return c
}

func (c *HTTPClassifier) Labels() []string { return append([]string(nil), c.labels...) }

// Logits posts the batch and reorders the returned columns into Labels order.
func (c *HTTPClassifier) Logits(ctx context.Context, texts []string) ([][]float64, error) {
	var resp classifyResponse
	op := func(ctx context.Context) error {
		return c.http.PostJSON(ctx, c.url, nil, classifyRequest{Texts: texts}, &resp)
	}
	notify := func(err error, wait time.Duration) {
		c.log.WithError(err).WithField("retry_in", wait.String()).Warn("classifier request failed")
	}
	if err := c.retry.Do(ctx, op, notify); err != nil {
		return nil, err
	}

	col := make([]int, len(c.labels))
	for i, want := range c.labels {
		col[i] = -1
		for j, got := range resp.Labels {
			if strings.EqualFold(got, want) {
				col[i] = j
				break
			}
		}
		if col[i] < 0 {
			return nil, fmt.Errorf("%w: classifier did not return label %q", types.ErrShapeMismatch, want)
		}
	}

	out := make([][]float64, len(resp.Logits))
	for r, row := range resp.Logits {
		if len(row) != len(resp.Labels) {
			return nil, fmt.Errorf("%w: logit row %d has width %d, want %d",
				types.ErrShapeMismatch, r, len(row), len(resp.Labels))
		}
		out[r] = make([]float64, len(c.labels))
		for i, j := range col {
			out[r][i] = row[j]
		}
	}
	return out, nil
}
