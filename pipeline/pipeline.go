package pipeline

import "context"

// Iterator provides pull-based sequential access to a stream of values.
// A record source is an Iterator: lazy, finite and not restartable.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// FromSlice returns an Iterator over items.
func FromSlice[T any](items []T) Iterator[T] {
	return &sliceIter[T]{items: items}
}

// FromFunc returns an Iterator backed by next. It has nothing to close.
func FromFunc[T any](next func(ctx context.Context) (T, bool, error)) Iterator[T] {
	return funcIter[T](next)
}

// Collect drains it and returns all values. The iterator is closed.
func Collect[T any](ctx context.Context, it Iterator[T]) ([]T, error) {
	defer it.Close()
	var result []T
	for {
		val, ok, err := it.Next(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			return result, nil
		}
		result = append(result, val)
	}
}

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type funcIter[T any] func(ctx context.Context) (T, bool, error)

func (f funcIter[T]) Next(ctx context.Context) (T, bool, error) { return f(ctx) }

func (f funcIter[T]) Close() error { return nil }
