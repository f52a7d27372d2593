package redact

import (
	"context"
	"strings"
	"time"

	"call-analytics-go/internal/clients"
	"call-analytics-go/internal/logger"
)

type entitiesRequest struct {
	Text string `json:"text"`
}

type entity struct {
	Start int     `json:"start"`
	End   int     `json:"end"`
	Label string  `json:"label"`
	Score float64 `json:"score,omitempty"`
}

type entitiesResponse struct {
	Entities []entity `json:"entities"`
}

// HTTPDetector calls an entity-recognition service at <baseURL>/entities.
// The service reports character offsets; they are converted to byte offsets.
type HTTPDetector struct {
	url      string
	http     *clients.HTTP
	retry    clients.RetryPolicy
	minScore float64
	log      *logger.Logger
}

// HTTPOption configures an HTTPDetector.
type HTTPOption func(*HTTPDetector)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPDetector) { h.http = clients.NewHTTP(d) }
}

// WithRetry sets the retry policy.
func WithRetry(p clients.RetryPolicy) HTTPOption {
	return func(h *HTTPDetector) { h.retry = p }
}

// WithMinScore drops entities the service scored below s. Entities without a score are kept.
func WithMinScore(s float64) HTTPOption {
	return func(h *HTTPDetector) { h.minScore = s }
}

// WithDetectorLogger sets the logger.
func WithDetectorLogger(l *logger.Logger) HTTPOption {
	return func(h *HTTPDetector) {
		if l != nil {
			h.log = l
		}
	}
}

// NewHTTPDetector creates a detector for the service at baseURL.
func NewHTTPDetector(baseURL string, opts ...HTTPOption) *HTTPDetector {
	h := &HTTPDetector{
		url:   strings.TrimRight(baseURL, "/") + "/entities",
		http:  clients.NewHTTP(0),
		retry: clients.DefaultRetry,
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.Component("redact-http")
	return h
}

func (h *HTTPDetector) Detect(ctx context.Context, text string) ([]Span, error) {
	var resp entitiesResponse
	op := func(ctx context.Context) error {
		return h.http.PostJSON(ctx, h.url, nil, entitiesRequest{Text: text}, &resp)
	}
	notify := func(err error, wait time.Duration) {
		h.log.WithError(err).WithField("retry_in", wait.String()).Warn("entity request failed")
	}
	if err := h.retry.Do(ctx, op, notify); err != nil {
		return nil, err
	}

	offsets := runeOffsets(text)
	out := make([]Span, 0, len(resp.Entities))
	for _, e := range resp.Entities {
		if e.Score > 0 && e.Score < h.minScore {
			continue
		}
		out = append(out, Span{Start: byteOffset(offsets, e.Start), End: byteOffset(offsets, e.End), Class: e.Label})
	}
	return out, nil
}

// runeOffsets maps rune index to byte offset, with one extra entry for the end.
func runeOffsets(text string) []int {
	out := make([]int, 0, len(text)+1)
	for i := range text {
		out = append(out, i)
	}
	return append(out, len(text))
}

func byteOffset(offsets []int, r int) int {
	if r <= 0 {
		return 0
	}
	if r >= len(offsets) {
		return offsets[len(offsets)-1]
	}
	return offsets[r]
}

// ChainDetector reports the union of several detectors. Any failure fails the chain.
type ChainDetector []Detector

func (c ChainDetector) Detect(ctx context.Context, text string) ([]Span, error) {
	var out []Span
	for _, d := range c {
		spans, err := d.Detect(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, spans...)
	}
	return out, nil
}
