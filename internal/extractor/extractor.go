// Package extractor asks a generative model for call KPIs and parses the answer.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"call-analytics-go/internal/clients"
	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/metrics"
	"call-analytics-go/internal/types"
)

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Permanent marks a generator error as not worth retrying.
func Permanent(err error) error { return clients.Permanent(err) }

// Extractor owns prompt construction, retries and response parsing.
type Extractor struct {
	gen     Generator
	catalog Catalog
	retry   clients.RetryPolicy
	log     *logger.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCatalog replaces the default KPI catalog.
func WithCatalog(c Catalog) Option {
	return func(e *Extractor) {
		if len(c) > 0 {
			e.catalog = c
		}
	}
}

// WithRetry bounds the model call: at most attempts tries with exponential
// backoff between initial and max.
func WithRetry(attempts int, initial, max time.Duration) Option {
	return func(e *Extractor) {
		e.retry = clients.RetryPolicy{MaxAttempts: attempts, Initial: initial, Max: max}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an Extractor around gen.
func New(gen Generator, opts ...Option) *Extractor {
	e := &Extractor{
		gen:     gen,
		catalog: DefaultCatalog(),
		retry:   clients.RetryPolicy{MaxAttempts: 4, Initial: 500 * time.Millisecond, Max: 10 * time.Second},
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Component("extractor")
	return e
}

// Catalog returns the KPIs this extractor requests.
func (e *Extractor) Catalog() Catalog { return e.catalog }

// Extract sends the redacted call text to the model once per attempt and parses
// the first successful response. Missing KPIs are absent, not errors; only a
// model that keeps failing yields types.ErrKPIExtraction.
func (e *Extractor) Extract(ctx context.Context, text string) (types.KPISet, error) {
	prompt := BuildPrompt(e.catalog, text)
	e.log.WithField("prompt_len", len(prompt)).Debug("kpi prompt built")

	var response string
	attempt := 0
	op := func(ctx context.Context) error {
		attempt++
		metrics.RecordKPIAttempt()
		out, err := e.gen.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		response = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		e.log.WithError(err).WithField("attempt", attempt).WithField("retry_in", wait.String()).Warn("kpi model call failed")
	}

	if err := e.retry.Do(ctx, op, notify); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("kpi extraction: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w after %d attempt(s): %w", types.ErrKPIExtraction, attempt, err)
	}

	set := Parse(e.catalog, response)
	absent := set.AbsentNames()
	for _, name := range absent {
		metrics.RecordKPIAbsent(name)
	}
	e.log.WithField("attempts", attempt).WithField("absent", absent).Debug("kpis parsed")
	return set, nil
}
