package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Sink is an append-only destination for records.
type Sink[T any] interface {
	Write(ctx context.Context, records []T) error
	Close() error
	// ID identifies the sink in summaries, e.g. a file path.
	ID() string
}

// SinkOpener creates a sink. It is called at most once per run, on the
// first write.
type SinkOpener[T any] func(ctx context.Context) (Sink[T], error)

// ErrSinkClosed is returned when writing to a closed LazySink.
var ErrSinkClosed = errors.New("sink closed")

// LazySink defers opening its sink until the first non-empty write, so a
// run that never writes never creates the output. It is not safe for
// concurrent use; only the collector touches it.
type LazySink[T any] struct {
	open   SinkOpener[T]
	sink   Sink[T]
	closed bool
}

// NewLazySink returns a LazySink that opens with open.
func NewLazySink[T any](open SinkOpener[T]) *LazySink[T] {
	return &LazySink[T]{open: open}
}

// Write appends records, opening the sink first if needed. Empty writes do
// nothing.
func (l *LazySink[T]) Write(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}
	if l.closed {
		return ErrSinkClosed
	}
	if l.sink == nil {
		if l.open == nil {
			return errors.New("no sink configured")
		}
		s, err := l.open(ctx)
		if err != nil {
			return err
		}
		l.sink = s
	}
	return l.sink.Write(ctx, records)
}

// Opened reports whether the underlying sink was created.
func (l *LazySink[T]) Opened() bool { return l != nil && l.sink != nil }

// ID returns the underlying sink's ID, or "" if it was never opened.
func (l *LazySink[T]) ID() string {
	if l == nil || l.sink == nil {
		return ""
	}
	return l.sink.ID()
}

// Close closes the underlying sink if it was opened. Only the first call
// has any effect. Closing a nil LazySink is a no-op.
func (l *LazySink[T]) Close() error {
	if l == nil || l.closed {
		return nil
	}
	l.closed = true
	if l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// writeRecovered writes to s, turning a panic in the sink into an error.
func writeRecovered[T any](ctx context.Context, s *LazySink[T], records []T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Write(ctx, records)
}

// closeRecovered is Close with the same panic handling as writeRecovered.
func closeRecovered[T any](s *LazySink[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Close()
}
