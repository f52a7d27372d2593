// Package processor runs the full pipeline for a single call.
package processor

import (
	"context"
	"fmt"
	"time"

	"call-analytics-go/internal/aggregator"
	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/metrics"
	"call-analytics-go/internal/redact"
	"call-analytics-go/internal/timing"
	"call-analytics-go/internal/transcription"
	"call-analytics-go/internal/types"
)

// Stage names used for metrics and logs.
const (
	StageNormalize     = "normalize"
	StageSentiment     = "sentiment"
	StageTiming        = "timing"
	StageAssembleIntra = "assemble_intra"
	StageRedact        = "redact"
	StageKPI           = "kpi"
	StageAssembleInter = "assemble_inter"
)

// SentimentScorer scores a call's utterance texts, one distribution per text.
type SentimentScorer interface {
	Score(ctx context.Context, texts []string) ([]types.SentimentScore, error)
}

// PIIRedactor redacts each utterance's text independently.
type PIIRedactor interface {
	RedactUtterances(ctx context.Context, utts []types.Utterance) ([]string, error)
}

// KPIExtractor extracts the KPI set from redacted call text.
type KPIExtractor interface {
	Extract(ctx context.Context, text string) (types.KPISet, error)
}

// Call is one unit of work: its metadata and the raw transcript payload.
type Call struct {
	Meta    types.CallMetadata
	Payload []byte
}

// Result holds both records produced for a call.
type Result struct {
	Intra      []types.IntraCallRecord `json:"intra_call"`
	Inter      types.InterCallRecord   `json:"inter_call"`
	DurationMs int64                   `json:"duration_ms"`
}

// Processor is stateless across calls and safe for concurrent use when its
// collaborators are.
type Processor struct {
	scorer    SentimentScorer
	redactor  PIIRedactor
	extractor KPIExtractor
	timeout   time.Duration
	log       *logger.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithTimeout bounds each call's pipeline (0 = only the caller's context).
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) { p.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// New wires the per-call stages.
func New(scorer SentimentScorer, redactor PIIRedactor, extractor KPIExtractor, opts ...Option) *Processor {
	p := &Processor{scorer: scorer, redactor: redactor, extractor: extractor, log: logger.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.Component("processor")
	return p
}

// Process runs normalize, sentiment and timing, assembles the intra-call rows,
// redacts, extracts KPIs and assembles the inter-call row. Stages run in order and
// the first error ends the call.
func (p *Processor) Process(ctx context.Context, call Call) (Result, error) {
	start := time.Now()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	log := p.log.With("contact_id", call.Meta.ContactID)

	if err := aggregator.ValidateMetadata(call.Meta); err != nil {
		return Result{}, err
	}

	var utts []types.Utterance
	err := stage(StageNormalize, func() error {
		var err error
		utts, err = transcription.Normalize(call.Meta.ContactID, call.Payload)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	texts := make([]string, len(utts))
	for i, u := range utts {
		texts[i] = u.Text
	}
	var scores []types.SentimentScore
	if err := stage(StageSentiment, func() error {
		var err error
		scores, err = p.scorer.Score(ctx, texts)
		return err
	}); err != nil {
		return Result{}, err
	}

	var segs []types.TimingSegment
	var callTiming types.CallTiming
	timingStart := time.Now()
	segs, callTiming = timing.Analyze(utts)
	metrics.ObserveStage(StageTiming, time.Since(timingStart).Seconds())

	var intra []types.IntraCallRecord
	if err := stage(StageAssembleIntra, func() error {
		var err error
		intra, err = aggregator.AssembleIntra(call.Meta.ContactID, utts, scores, segs)
		return err
	}); err != nil {
		return Result{}, err
	}

	var redacted string
	if err := stage(StageRedact, func() error {
		red, err := p.redactor.RedactUtterances(ctx, utts)
		if err != nil {
			return err
		}
		if len(red) != len(utts) {
			return fmt.Errorf("%w: %d redacted texts for %d utterances", types.ErrShapeMismatch, len(red), len(utts))
		}
		redacted = redact.JoinText(utts, red)
		return nil
	}); err != nil {
		return Result{}, err
	}

	var kpis types.KPISet
	if err := stage(StageKPI, func() error {
		var err error
		kpis, err = p.extractor.Extract(ctx, redacted)
		return err
	}); err != nil {
		return Result{}, err
	}

	var inter types.InterCallRecord
	if err := stage(StageAssembleInter, func() error {
		var err error
		inter, err = aggregator.AssembleInter(call.Meta, callTiming, intra, kpis, redacted)
		return err
	}); err != nil {
		return Result{}, err
	}

	elapsed := time.Since(start)
	log.WithField("utterances", len(utts)).
		WithField("absent_kpis", len(kpis.AbsentNames())).
		WithField("duration_ms", elapsed.Milliseconds()).
		Info("call processed")
	return Result{Intra: intra, Inter: inter, DurationMs: elapsed.Milliseconds()}, nil
}

func stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveStage(name, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
