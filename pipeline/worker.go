package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/kbukum/sieve/errors"
	"github.com/kbukum/sieve/logger"
	"github.com/kbukum/sieve/resilience"
)

// FilterFn preprocesses a work item before ProcessFn sees it. Returning
// false, or an item that is no longer valid, rejects the item without
// calling ProcessFn. An error is fatal to the run.
type FilterFn[K comparable, R any] func(ctx context.Context, item WorkItem[K, R]) (WorkItem[K, R], bool, error)

// ProcessFn turns one work item into one result. Rejections are results
// with Valid false; an error is fatal to the run.
type ProcessFn[K comparable, R, O any] func(ctx context.Context, item WorkItem[K, R]) (ResultItem[K, R, O], error)

// Worker turns WorkItems from In into ResultItems on Out. Workers share no
// state besides the queues, the flag and the optional Limiter.
type Worker[K comparable, R, O any] struct {
	ID      int
	In      *Queue[Message[WorkItem[K, R]]]
	Out     *Queue[Message[ResultItem[K, R, O]]]
	Flag    *Flag
	Filter  FilterFn[K, R]
	Process ProcessFn[K, R, O]
	// Retry, when set, retries transform errors classified as retryable.
	Retry *resilience.RetryConfig
	// Limiter, when set, paces items across all workers that share it.
	Limiter  *rate.Limiter
	Logger   *logger.Logger
	Recorder Recorder
}

// Run processes items until it pops an end-of-stream marker, which it
// forwards to Out, or until the flag is aborted.
func (w *Worker[K, R, O]) Run(ctx context.Context) error {
	log := orNop(w.Logger).WithComponent("pipeline.worker").WithFields(logger.Fields(logger.FieldWorker, w.ID))
	recorder := orNopRecorder(w.Recorder)
	for {
		msg, ok := w.In.Pop(w.Flag)
		if !ok {
			return nil
		}
		if msg.IsEnd() {
			w.Out.Push(w.Flag, EndOfStream[ResultItem[K, R, O]]())
			log.Debug("worker finished")
			return nil
		}

		item := msg.Value()
		if w.Limiter != nil {
			if err := w.Limiter.Wait(ctx); err != nil {
				return raise(ctx, w.Flag, apperrors.Aborted(err).WithStage(apperrors.StageWorker))
			}
		}

		start := time.Now()
		res, err := w.handle(ctx, item, log)
		if err != nil {
			log.Debug("transform failed", logger.MergeWithError(logger.Fields(logger.FieldKey, item.Key), err))
			return raise(ctx, w.Flag, apperrors.TransformError(item.Key, err).WithDetail(logger.FieldWorker, w.ID))
		}
		recorder.RecordItem(ctx, res.Valid, res.RecordCount, time.Since(start))

		if !w.Out.Push(w.Flag, Item(res)) {
			return nil
		}
	}
}

// handle filters and processes one item. Panics in user functions are
// returned as errors.
func (w *Worker[K, R, O]) handle(ctx context.Context, item WorkItem[K, R], log *logger.Logger) (res ResultItem[K, R, O], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	work := item
	if w.Filter != nil {
		filtered, keep, ferr := w.Filter(ctx, item)
		if ferr != nil {
			return res, ferr
		}
		if !keep || !filtered.Valid() {
			entries := LogEntries{}.
				With(logger.FieldKey, item.Key).
				With(logger.FieldRecords, item.RecordCount()).
				With(logger.FieldStatus, StatusRejected)
			return seal(item, Reject[K, R, O](item, entries)), nil
		}
		work = filtered
	}

	res, err = w.process(ctx, work, log)
	if err != nil {
		return res, err
	}
	return seal(item, res), nil
}

func (w *Worker[K, R, O]) process(ctx context.Context, item WorkItem[K, R], log *logger.Logger) (ResultItem[K, R, O], error) {
	if w.Retry == nil {
		return w.Process(ctx, item)
	}
	cfg := *w.Retry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Warn("retrying item", logger.MergeWithError(logger.Fields(
			logger.FieldKey, item.Key,
			"attempt", attempt,
			"backoff", backoff.String(),
		), err))
	}
	return resilience.Retry(ctx, cfg, func() (ResultItem[K, R, O], error) {
		return w.Process(ctx, item)
	})
}
