// Package pipeline runs a batch of calls through the processor with a bounded
// worker pool and persists what succeeds.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"call-analytics-go/internal/actionable"
	"call-analytics-go/internal/aggregator"
	"call-analytics-go/internal/dataset"
	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/metrics"
	"call-analytics-go/internal/processor"
	"call-analytics-go/internal/types"
)

// Source lists and reads raw transcript objects.
type Source interface {
	List(ctx context.Context, prefix string, maxCount int) ([]dataset.Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Sink persists both record kinds.
type Sink interface {
	WriteIntra(ctx context.Context, rows []types.IntraCallRecord) error
	WriteInter(ctx context.Context, rec types.InterCallRecord) error
	Close() error
}

// CallWriter is implemented by sinks that can persist both records of a call
// atomically. Other sinks get WriteIntra then WriteInter; a failed WriteInter
// there can leave the call's intra rows behind.
type CallWriter interface {
	WriteCall(ctx context.Context, rows []types.IntraCallRecord, rec types.InterCallRecord) error
}

// CallProcessor runs one call end to end.
type CallProcessor interface {
	Process(ctx context.Context, call processor.Call) (processor.Result, error)
}

// Failure describes one skipped call.
type Failure struct {
	ContactID string `json:"contact_id,omitempty"`
	Key       string `json:"key"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
}

// Report is the outcome of one batch.
type Report struct {
	BatchID    string                  `json:"batch_id"`
	StartedAt  time.Time               `json:"started_at"`
	DurationMs int64                   `json:"duration_ms"`
	Listed     int                     `json:"listed"`
	Results    []processor.Result      `json:"results"`
	Failures   []Failure               `json:"failures"`
	Insight    aggregator.Insight      `json:"insight"`
	Actions    []actionable.ActionCard `json:"actions"`
}

// Runner owns the worker pool.
type Runner struct {
	src     Source
	proc    CallProcessor
	sink    Sink
	workers int
	prefix  string
	max     int
	log     *logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the pool size (minimum 1).
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithPrefix restricts listing to keys under prefix.
func WithPrefix(p string) Option {
	return func(r *Runner) { r.prefix = p }
}

// WithMaxObjects caps the batch (0 = no cap).
func WithMaxObjects(n int) Option {
	return func(r *Runner) { r.max = n }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

func New(src Source, proc CallProcessor, sink Sink, opts ...Option) *Runner {
	r := &Runner{src: src, proc: proc, sink: sink, workers: 1, log: logger.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Component("pipeline")
	return r
}

type outcome struct {
	obj       dataset.Object
	contactID string
	res       processor.Result
	err       error
	took      time.Duration
}

// Run lists the batch, processes every call and persists the successes.
// A failing call is recorded in the report and never stops the others.
// Listing errors fail the whole batch. When ctx is canceled, calls not yet
// started are reported as canceled and ctx.Err() is returned with the report.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{BatchID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := r.log.With("batch_id", rep.BatchID)

	objs, err := r.src.List(ctx, r.prefix, r.max)
	if err != nil {
		return rep, fmt.Errorf("list transcripts: %w", err)
	}
	rep.Listed = len(objs)
	log.WithField("objects", len(objs)).WithField("workers", r.workers).Info("batch started")

	jobs := make(chan dataset.Object)
	out := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for obj := range jobs {
				out <- r.work(ctx, obj)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, obj := range objs {
			if ctx.Err() != nil {
				// Report the rest without running them.
				out <- outcome{obj: obj, err: ctx.Err()}
				continue
			}
			select {
			case jobs <- obj:
			case <-ctx.Done():
				out <- outcome{obj: obj, err: ctx.Err()}
			}
		}
	}()

	go func() {
		// jobs is closed by the feeder; workers drain it, then out closes.
		wg.Wait()
		close(out)
	}()

	for o := range out {
		r.collect(ctx, log, &rep, o)
	}

	sort.Slice(rep.Results, func(i, j int) bool {
		return rep.Results[i].Inter.ContactID < rep.Results[j].Inter.ContactID
	})
	sort.Slice(rep.Failures, func(i, j int) bool { return rep.Failures[i].Key < rep.Failures[j].Key })

	inter := make([]types.InterCallRecord, len(rep.Results))
	for i, res := range rep.Results {
		inter[i] = res.Inter
	}
	rep.Insight = aggregator.Summarize(inter)
	rep.Actions = actionable.Generate(rep.Insight)
	rep.DurationMs = time.Since(rep.StartedAt).Milliseconds()

	log.WithField("processed", len(rep.Results)).
		WithField("failed", len(rep.Failures)).
		WithField("duration_ms", rep.DurationMs).
		Info("batch finished")

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

// Handle processes and persists a single call outside a batch.
func (r *Runner) Handle(ctx context.Context, call processor.Call) (res processor.Result, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("contact_id", call.Meta.ContactID).
				WithField("stack", string(debug.Stack())).
				Error("call pipeline panicked")
			metrics.RecordCallFailed(types.KindUnknown)
			res, err = processor.Result{}, fmt.Errorf("panic: %v", p)
		}
	}()
	res, err = r.proc.Process(ctx, call)
	if err == nil {
		err = r.persist(ctx, res)
	}
	if err != nil {
		metrics.RecordCallFailed(types.KindOf(err))
		return processor.Result{}, err
	}
	metrics.RecordCallProcessed(time.Since(start).Seconds())
	return res, nil
}

func (r *Runner) work(ctx context.Context, obj dataset.Object) (o outcome) {
	metrics.WorkerBusy()
	defer metrics.WorkerIdle()

	start := time.Now()
	o = outcome{obj: obj}
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("key", obj.Key).
				WithField("stack", string(debug.Stack())).
				Error("call pipeline panicked")
			o.res = processor.Result{}
			o.err = fmt.Errorf("panic: %v", p)
		}
	}()

	payload, err := r.src.Get(ctx, obj.Key)
	if err != nil {
		o.err = err
		return o
	}
	o.contactID, err = dataset.ResolveContactID(obj, payload)
	if err != nil {
		o.err = err
		return o
	}
	o.res, o.err = r.proc.Process(ctx, processor.Call{
		Meta: types.CallMetadata{
			ContactID:        o.contactID,
			LastModifiedDate: obj.LastModified,
			ObjectKey:        obj.Key,
		},
		Payload: payload,
	})
	o.took = time.Since(start)
	return o
}

// collect runs on the Run goroutine only, so the sink sees one writer per batch.
func (r *Runner) collect(ctx context.Context, log *logger.Logger, rep *Report, o outcome) {
	err := o.err
	if err == nil {
		err = r.persist(ctx, o.res)
	}
	if err != nil {
		kind := types.KindOf(err)
		metrics.RecordCallFailed(kind)
		rep.Failures = append(rep.Failures, Failure{
			ContactID: o.contactID,
			Key:       o.obj.Key,
			Kind:      kind,
			Error:     err.Error(),
		})
		log.WithField("key", o.obj.Key).
			WithField("contact_id", o.contactID).
			WithField("kind", kind).
			WithError(err).
			Warn("call skipped")
		return
	}
	metrics.RecordCallProcessed(o.took.Seconds())
	rep.Results = append(rep.Results, o.res)
}

func (r *Runner) persist(ctx context.Context, res processor.Result) error {
	// Finished calls are persisted even after the batch is canceled.
	ctx = context.WithoutCancel(ctx)
	if cw, ok := r.sink.(CallWriter); ok {
		return cw.WriteCall(ctx, res.Intra, res.Inter)
	}
	if err := r.sink.WriteIntra(ctx, res.Intra); err != nil {
		return err
	}
	return r.sink.WriteInter(ctx, res.Inter)
}
