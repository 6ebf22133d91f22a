package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type rec struct {
	ID    int
	Group string
}

func records(n int) []rec {
	out := make([]rec, n)
	for i := range out {
		out[i] = rec{ID: i + 1, Group: fmt.Sprintf("g%d", (i+1)%4)}
	}
	return out
}

func recordID(_ int, r rec) int { return r.ID }

// memSink is a Sink that keeps everything in memory.
type memSink[T any] struct {
	id      string
	mu      sync.Mutex
	records []T
	closes  int
	failAt  int
	writes  int
	// panicAt makes the nth write panic; panicClose makes Close panic.
	panicAt    int
	panicClose bool
}

func (s *memSink[T]) Write(_ context.Context, rs []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.panicAt > 0 && s.writes >= s.panicAt {
		panic("sink exploded")
	}
	if s.failAt > 0 && s.writes >= s.failAt {
		return errors.New("disk full")
	}
	s.records = append(s.records, rs...)
	return nil
}

func (s *memSink[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.panicClose {
		panic("close exploded")
	}
	return nil
}

func (s *memSink[T]) ID() string { return s.id }

// spy hands out a memSink and remembers how often it was opened.
type spy[T any] struct {
	id         string
	failAt     int
	panicAt    int
	panicClose bool
	opens      atomic.Int32
	sink       *memSink[T]
}

func newSpy[T any](id string) *spy[T] { return &spy[T]{id: id} }

func (p *spy[T]) opener() SinkOpener[T] {
	return func(context.Context) (Sink[T], error) {
		p.opens.Add(1)
		p.sink = &memSink[T]{id: p.id, failAt: p.failAt, panicAt: p.panicAt, panicClose: p.panicClose}
		return p.sink, nil
	}
}

func (p *spy[T]) records() []T {
	if p.sink == nil {
		return nil
	}
	return p.sink.records
}

func ids(rs []rec) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	sort.Ints(out)
	return out
}

// markThirds rejects records whose ID is divisible by 3.
func markThirds(_ context.Context, item WorkItem[int, rec]) (ResultItem[int, rec, rec], error) {
	r := item.Payload[0]
	log := LogEntries{}.With("id", r.ID)
	if r.ID%3 == 0 {
		return Reject[int, rec, rec](item, log.With("status", "invalid")), nil
	}
	return Pass(item, []rec{r}, log.With("status", "ok")), nil
}

func passThrough(src []rec, pass, fail *spy[rec]) Stages[int, rec, rec] {
	st := Stages[int, rec, rec]{
		Source:   FromSlice(src),
		Key:      recordID,
		Process:  markThirds,
		PassSink: pass.opener(),
	}
	if fail != nil {
		st.FailSink = fail.opener()
	}
	return st
}

func testConfig(workers, queue int) Config {
	cfg := DefaultConfig()
	cfg.WorkerCount = workers
	cfg.QueueCapacity = queue
	return cfg
}

// runWithin runs p and fails the test if it does not return within d.
func runWithin(t *testing.T, d time.Duration, run func() (*Summary, error)) (*Summary, error) {
	t.Helper()
	type out struct {
		s   *Summary
		err error
	}
	done := make(chan out, 1)
	go func() {
		s, err := run()
		done <- out{s, err}
	}()
	select {
	case o := <-done:
		return o.s, o.err
	case <-time.After(d):
		require.FailNow(t, "pipeline did not terminate", "waited %v", d)
		return nil, nil
	}
}
