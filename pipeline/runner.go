package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "github.com/kbukum/sieve/errors"
	"github.com/kbukum/sieve/logger"
	"github.com/kbukum/sieve/observability"
	"github.com/kbukum/sieve/resilience"
)

// Stages are the caller-supplied parts of a pipeline. Source, Process and
// PassSink are required, as is one of Group or Key. FailSink may be nil, in
// which case rejected records are only counted.
type Stages[K comparable, R, O any] struct {
	Source   Iterator[R]
	Group    GroupFn[K, R]
	Key      KeyFn[K, R]
	Filter   FilterFn[K, R]
	Process  ProcessFn[K, R, O]
	PassSink SinkOpener[O]
	FailSink SinkOpener[R]
}

// Pipeline is a configured run over one record source. Since sources are
// not restartable it can run only once.
type Pipeline[K comparable, R, O any] struct {
	stages Stages[K, R, O]
	cfg    Config
	opts   options
	ran    atomic.Bool
}

// New validates stages and cfg and returns a pipeline ready to run. Zero
// config values are defaulted.
func New[K comparable, R, O any](stages Stages[K, R, O], cfg Config, opts ...Option) (*Pipeline[K, R, O], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case stages.Source == nil:
		return nil, apperrors.InvalidConfig("source", "a record source is required")
	case stages.Process == nil:
		return nil, apperrors.InvalidConfig("process", "a process function is required")
	case stages.PassSink == nil:
		return nil, apperrors.InvalidConfig("pass_sink", "a pass sink is required")
	case stages.Group == nil && stages.Key == nil:
		return nil, apperrors.InvalidConfig("key", "either a group or a key function is required")
	}

	p := &Pipeline[K, R, O]{stages: stages, cfg: cfg}
	for _, opt := range opts {
		opt(&p.opts)
	}
	p.opts.logger = orNop(p.opts.logger)
	p.opts.recorder = orNopRecorder(p.opts.recorder)
	return p, nil
}

// Run is shorthand for New followed by Run.
func Run[K comparable, R, O any](ctx context.Context, stages Stages[K, R, O], cfg Config, opts ...Option) (*Summary, error) {
	p, err := New(stages, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx)
}

// Config returns the effective configuration.
func (p *Pipeline[K, R, O]) Config() Config { return p.cfg }

// Run executes the pipeline and blocks until every stage has returned.
//
// On completion it returns a summary with Complete set. If any stage fails,
// or ctx ends first, the run is aborted and Run returns the partial summary
// together with the error that caused the abort.
func (p *Pipeline[K, R, O]) Run(ctx context.Context) (*Summary, error) {
	if !p.ran.CompareAndSwap(false, true) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidConfig, "pipeline has already run")
	}

	runID := uuid.NewString()
	ctx = logger.ContextWithRunID(ctx, runID)
	log := p.opts.logger.WithContext(ctx)
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrRunID, runID)
	observability.SetSpanAttribute(ctx, observability.AttrWorkers, p.cfg.WorkerCount)
	observability.SetSpanAttribute(ctx, observability.AttrQueue, p.cfg.QueueCapacity)

	summary := &Summary{RunID: runID, StartedAt: time.Now()}
	log.Info("pipeline started", logger.Fields(
		"workers", p.cfg.WorkerCount,
		"queue_capacity", p.cfg.QueueCapacity,
		"write_fail_output", p.cfg.WriteFailOutput,
	))

	flag := NewFlag()
	stop := context.AfterFunc(ctx, func() {
		flag.Abort(apperrors.Aborted(context.Cause(ctx)))
	})

	work := NewQueue[Message[WorkItem[K, R]]](p.cfg.QueueCapacity)
	results := NewQueue[Message[ResultItem[K, R, O]]](p.cfg.QueueCapacity)
	writeFail := p.cfg.WriteFailOutput && p.stages.FailSink != nil
	pass := NewLazySink(p.stages.PassSink)
	fail := NewLazySink(p.stages.FailSink)

	var (
		feed  FeedStats
		tally Tally
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		feeder := &Feeder[K, R]{
			Source: p.stages.Source,
			Group:  p.stages.Group,
			Key:    p.stages.Key,
			Out:    work,
			Flag:   flag,
			Logger: log,
		}
		var err error
		feed, err = feeder.Run(gctx)
		if err != nil || !flag.Alive() {
			return err
		}
		for range p.cfg.WorkerCount {
			if !work.Push(flag, EndOfStream[WorkItem[K, R]]()) {
				return nil
			}
		}
		return nil
	})

	var limiter *rate.Limiter
	if p.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.cfg.RateLimit), max(1, int(p.cfg.RateLimit)))
	}
	var retry *resilience.RetryConfig
	if p.cfg.MaxRetries > 0 {
		rc := resilience.ForAttempts(p.cfg.MaxRetries, p.cfg.RetryBackoff)
		retry = &rc
	}
	for i := range p.cfg.WorkerCount {
		w := &Worker[K, R, O]{
			ID:       i,
			In:       work,
			Out:      results,
			Flag:     flag,
			Filter:   p.stages.Filter,
			Process:  p.stages.Process,
			Retry:    retry,
			Limiter:  limiter,
			Logger:   log,
			Recorder: p.opts.recorder,
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	g.Go(func() error {
		c := &Collector[K, R, O]{
			In:            results,
			Flag:          flag,
			Workers:       p.cfg.WorkerCount,
			Pass:          pass,
			Fail:          fail,
			WriteFail:     writeFail,
			ExpectedTotal: p.cfg.ExpectedTotal,
			Granularity:   p.cfg.ProgressGranularity,
			OnProgress:    p.opts.progress,
			Logger:        log,
		}
		var err error
		tally, err = c.Run(gctx)
		return err
	})

	waitErr := g.Wait()
	if !stop() {
		// The supervisor fired; wait for its abort to land.
		<-flag.Done()
	}

	summary.Total = tally.Total
	summary.Passed = tally.Passed
	summary.Failed = tally.Failed
	summary.Items = tally.Items
	summary.Dropped = feed.Dropped
	summary.Log = tally.Log
	summary.PassSink = pass.ID()
	if writeFail {
		summary.FailSink = fail.ID()
	}
	summary.Duration = time.Since(summary.StartedAt)

	observability.SetSpanAttribute(ctx, observability.AttrTotal, summary.Total)
	observability.SetSpanAttribute(ctx, observability.AttrPassed, summary.Passed)
	observability.SetSpanAttribute(ctx, observability.AttrFailed, summary.Failed)

	// A run whose collector drained every worker is complete even if ctx
	// ended after the last write.
	if waitErr != nil || !tally.Drained {
		cause := flag.Cause()
		if cause == nil {
			cause = waitErr
		}
		if cause == nil {
			cause = apperrors.Aborted(context.Cause(ctx))
		}
		stage := ""
		if appErr, ok := apperrors.AsAppError(cause); ok {
			stage = appErr.Stage
		}
		p.opts.recorder.RecordAbort(ctx, stage)
		observability.SetSpanAttribute(ctx, observability.AttrComplete, false)
		observability.SetSpanError(ctx, cause)
		log.Error("pipeline aborted", logger.MergeWithError(logger.Fields(
			logger.FieldStage, stage,
			logger.FieldTotal, summary.Total,
		), cause))
		return summary, cause
	}

	summary.Complete = true
	observability.SetSpanAttribute(ctx, observability.AttrComplete, true)
	err := p.checkRejected(summary, writeFail, log)
	fields := logger.DurationFields("pipeline.run", summary.Duration)
	fields[logger.FieldTotal] = summary.Total
	fields[logger.FieldPassed] = summary.Passed
	fields[logger.FieldFailed] = summary.Failed
	log.Info("pipeline finished", fields)
	return summary, err
}

// checkRejected applies the reject policy to a run in which every record
// was rejected and nothing recorded the rejects.
func (p *Pipeline[K, R, O]) checkRejected(summary *Summary, writeFail bool, log *logger.Logger) error {
	if summary.Total == 0 || summary.Passed > 0 || writeFail {
		return nil
	}
	switch p.cfg.RejectPolicy {
	case RejectWarn:
		msg := fmt.Sprintf("all %d records were rejected and fail output is disabled", summary.Total)
		summary.Warnings = append(summary.Warnings, msg)
		log.Warn(msg)
	case RejectFail:
		return apperrors.AllRejected(summary.Total)
	}
	return nil
}
