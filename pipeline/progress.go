package pipeline

import "math"

// Progress is a snapshot of how many records the collector has accounted
// for.
type Progress struct {
	Done  int
	Total int
	// Fraction is Done/Total capped at 1. It never decreases within a run.
	Fraction float64
}

// ProgressFunc receives progress updates from the collector goroutine.
type ProgressFunc func(Progress)

// progressTracker emits an update each time the done fraction crosses the
// next multiple of step, plus one final update.
type progressTracker struct {
	total int
	step  float64
	next  float64
	emit  func(Progress)
}

func newProgressTracker(total int, step float64, emit func(Progress)) *progressTracker {
	if step <= 0 || step > 1 {
		step = 1
	}
	return &progressTracker{total: total, step: step, next: step, emit: emit}
}

func (p *progressTracker) advance(done int) {
	if p.total <= 0 {
		return
	}
	frac := math.Min(float64(done)/float64(p.total), 1)
	if frac+1e-9 < p.next || p.next > 1+1e-9 {
		return
	}
	p.next = (math.Floor(frac/p.step+1e-9) + 1) * p.step
	p.emit(Progress{Done: done, Total: p.total, Fraction: frac})
}

// finish reports completion. The total is raised to done when the
// expected total was an underestimate or unknown.
func (p *progressTracker) finish(done int) {
	total := max(p.total, done)
	p.emit(Progress{Done: done, Total: total, Fraction: 1})
}
