package pipeline

import (
	"context"

	apperrors "github.com/kbukum/sieve/errors"
	"github.com/kbukum/sieve/logger"
)

// Sink names used in errors and logs.
const (
	PassSinkName = "pass"
	FailSinkName = "fail"
)

// Tally is what the collector accounted for.
type Tally struct {
	Items  int
	Total  int
	Passed int
	Failed int
	Log    []LogEntries
	// Drained is set once every worker's end-of-stream arrived.
	Drained bool
}

// Collector drains the result queue, partitions output into the pass and
// fail sinks and reports progress. There is exactly one per run.
type Collector[K comparable, R, O any] struct {
	In   *Queue[Message[ResultItem[K, R, O]]]
	Flag *Flag
	// Workers is the number of end-of-stream markers to wait for.
	Workers   int
	Pass      *LazySink[O]
	Fail      *LazySink[R]
	WriteFail bool
	// ExpectedTotal is the record count progress is measured against. It
	// only affects reporting.
	ExpectedTotal int
	Granularity   float64
	OnProgress    ProgressFunc
	Logger        *logger.Logger
}

// Run collects until every worker has sent end-of-stream or the flag is
// aborted. Opened sinks are closed before it returns either way.
func (c *Collector[K, R, O]) Run(ctx context.Context) (tally Tally, err error) {
	log := orNop(c.Logger).WithComponent("pipeline.collector")
	progress := newProgressTracker(c.ExpectedTotal, c.Granularity, func(p Progress) {
		log.Info("progress", logger.Fields(
			logger.FieldRecords, p.Done,
			logger.FieldTotal, p.Total,
			logger.FieldProgress, p.Fraction,
		))
		if c.OnProgress != nil {
			c.OnProgress(p)
		}
	})
	defer func() {
		if cerr := c.closeSinks(log); cerr != nil && err == nil {
			err = raise(ctx, c.Flag, cerr)
		}
	}()

	finished := 0
	for finished < c.Workers {
		msg, ok := c.In.Pop(c.Flag)
		if !ok {
			return tally, nil
		}
		if msg.IsEnd() {
			finished++
			continue
		}

		res := msg.Value()
		tally.Items++
		tally.Total += res.RecordCount
		tally.Log = append(tally.Log, res.Log)

		if res.Valid {
			if werr := writeRecovered(ctx, c.Pass, res.Computed); werr != nil {
				return tally, raise(ctx, c.Flag, apperrors.SinkError(PassSinkName, werr))
			}
			tally.Passed += res.RecordCount
		} else {
			if c.WriteFail {
				if werr := writeRecovered(ctx, c.Fail, res.Source); werr != nil {
					return tally, raise(ctx, c.Flag, apperrors.SinkError(FailSinkName, werr))
				}
			}
			tally.Failed += res.RecordCount
		}
		progress.advance(tally.Total)
	}

	tally.Drained = true
	progress.finish(tally.Total)
	log.Debug("collector finished", logger.Fields(
		logger.FieldPassed, tally.Passed,
		logger.FieldFailed, tally.Failed,
	))
	return tally, nil
}

// closeSinks closes both sinks and returns the first failure. A panicking
// close counts as a failure.
func (c *Collector[K, R, O]) closeSinks(log *logger.Logger) *apperrors.AppError {
	var first *apperrors.AppError
	if err := closeRecovered(c.Pass); err != nil {
		log.Error("closing pass sink", logger.ErrorFields("close", err))
		first = apperrors.SinkError(PassSinkName, err)
	}
	if err := closeRecovered(c.Fail); err != nil {
		log.Error("closing fail sink", logger.ErrorFields("close", err))
		if first == nil {
			first = apperrors.SinkError(FailSinkName, err)
		}
	}
	return first
}
