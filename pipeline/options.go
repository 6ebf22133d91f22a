package pipeline

import (
	"context"
	"time"

	"github.com/kbukum/sieve/logger"
)

// Recorder receives per-item and per-run measurements.
type Recorder interface {
	// RecordItem is called by a worker after each processed item.
	RecordItem(ctx context.Context, valid bool, records int, elapsed time.Duration)
	// RecordAbort is called once for an aborted run with the stage that
	// caused it.
	RecordAbort(ctx context.Context, stage string)
}

type nopRecorder struct{}

func (nopRecorder) RecordItem(context.Context, bool, int, time.Duration) {}
func (nopRecorder) RecordAbort(context.Context, string)                  {}

func orNopRecorder(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

func orNop(l *logger.Logger) *logger.Logger {
	if l == nil {
		return logger.Nop()
	}
	return l
}

type options struct {
	logger   *logger.Logger
	progress ProgressFunc
	recorder Recorder
}

// Option configures a Pipeline.
type Option func(*options)

// WithLogger sets the logger. Stages log under their own component names.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProgress registers fn for progress updates. fn runs on the collector
// goroutine and should return quickly.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}
