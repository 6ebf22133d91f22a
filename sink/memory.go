package sink

import (
	"context"
	"sync"

	"github.com/kbukum/sieve/pipeline"
)

// Memory collects records in memory. It is safe for concurrent use.
type Memory[T any] struct {
	id string

	mu      sync.Mutex
	records []T
	writes  int
	opens   int
	closed  bool
}

var _ pipeline.Sink[int] = (*Memory[int])(nil)

// NewMemory returns an empty in-memory sink identified by id.
func NewMemory[T any](id string) *Memory[T] {
	return &Memory[T]{id: id}
}

// Opener returns an opener yielding m itself, counting how often it is
// called.
func (m *Memory[T]) Opener() pipeline.SinkOpener[T] {
	return func(context.Context) (pipeline.Sink[T], error) {
		m.mu.Lock()
		m.opens++
		m.mu.Unlock()
		return m, nil
	}
}

func (m *Memory[T]) Write(_ context.Context, records []T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return pipeline.ErrSinkClosed
	}
	m.records = append(m.records, records...)
	m.writes++
	return nil
}

func (m *Memory[T]) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *Memory[T]) ID() string { return m.id }

// Records returns a copy of everything written.
func (m *Memory[T]) Records() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, len(m.records))
	copy(out, m.records)
	return out
}

// Opens returns how many times the opener was called.
func (m *Memory[T]) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Closed reports whether Close was called.
func (m *Memory[T]) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
