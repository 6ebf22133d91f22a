package pipeline

// Queue is a bounded FIFO safe for many producers and consumers.
type Queue[T any] struct {
	ch chan T
}

// NewQueue returns a queue holding at most capacity values. Capacities
// below 1 are raised to 1.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Push appends v, waiting while the queue is full. It returns false without
// enqueuing once flag is aborted.
func (q *Queue[T]) Push(flag *Flag, v T) bool {
	if !flag.Alive() {
		return false
	}
	select {
	case q.ch <- v:
		return true
	case <-flag.Done():
		return false
	}
}

// Pop removes the oldest value, waiting while the queue is empty. It
// returns false once flag is aborted, dropping anything popped after that.
func (q *Queue[T]) Pop(flag *Flag) (T, bool) {
	var zero T
	if !flag.Alive() {
		return zero, false
	}
	select {
	case v := <-q.ch:
		if !flag.Alive() {
			return zero, false
		}
		return v, true
	case <-flag.Done():
		return zero, false
	}
}

// TryPush appends v if there is room.
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// TryPop removes the oldest value if there is one.
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }
