package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	apperrors "github.com/kbukum/sieve/errors"
)

// State is the state of a Flag.
type State int32

const (
	StateAlive State = iota
	StateAborted
)

func (s State) String() string {
	if s == StateAborted {
		return "aborted"
	}
	return "alive"
}

// Flag is the cancellation flag shared by every stage of one run. It moves
// from StateAlive to StateAborted once and never back.
type Flag struct {
	state atomic.Int32
	once  sync.Once
	done  chan struct{}
	cause error
}

// NewFlag returns an alive flag.
func NewFlag() *Flag {
	return &Flag{done: make(chan struct{})}
}

// Alive reports whether the run has not been aborted.
func (f *Flag) Alive() bool { return State(f.state.Load()) == StateAlive }

// State returns the current state.
func (f *Flag) State() State { return State(f.state.Load()) }

// Abort moves the flag to StateAborted with cause. It returns true only for
// the call that made the transition; later calls keep the first cause.
func (f *Flag) Abort(cause error) bool {
	won := false
	f.once.Do(func() {
		f.cause = cause
		f.state.Store(int32(StateAborted))
		close(f.done)
		won = true
	})
	return won
}

// Cause returns the error passed to the winning Abort, or nil while alive.
func (f *Flag) Cause() error {
	if f.Alive() {
		return nil
	}
	return f.cause
}

// Done is closed when the flag is aborted.
func (f *Flag) Done() <-chan struct{} { return f.done }

// raise aborts flag with err on behalf of a stage. A stage that loses the
// race to abort returns nil so that only the originating error surfaces.
// Errors caused by ctx ending are reported as aborts by the supervisor.
func raise(ctx context.Context, flag *Flag, err *apperrors.AppError) error {
	if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
		err = apperrors.Aborted(context.Cause(ctx))
	}
	if flag.Abort(err) {
		return err
	}
	return nil
}
