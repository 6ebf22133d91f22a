package pipeline

import (
	"context"
	"fmt"

	apperrors "github.com/kbukum/sieve/errors"
	"github.com/kbukum/sieve/logger"
)

// Group is one key of a grouped record source with its records.
type Group[K comparable, R any] struct {
	Key     K
	Records []R
}

// GroupFn indexes a whole record source into groups. It is called once per
// run; the feeder enqueues groups in the returned order, which callers must
// not rely on.
type GroupFn[K comparable, R any] func(ctx context.Context, src Iterator[R]) ([]Group[K, R], error)

// KeyFn keys a single record in pass-through mode, where every record is a
// group of its own. index is the record's position in the source.
type KeyFn[K comparable, R any] func(index int, rec R) K

// IndexKey keys each record by its position in the source.
func IndexKey[R any]() KeyFn[int, R] {
	return func(index int, _ R) int { return index }
}

// GroupBy builds a GroupFn that groups records by key, in first-seen order.
func GroupBy[K comparable, R any](key func(R) K) GroupFn[K, R] {
	return func(ctx context.Context, src Iterator[R]) ([]Group[K, R], error) {
		index := make(map[K]int)
		var groups []Group[K, R]
		for {
			rec, ok, err := src.Next(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return groups, nil
			}
			k := key(rec)
			i, seen := index[k]
			if !seen {
				i = len(groups)
				index[k] = i
				groups = append(groups, Group[K, R]{Key: k, Records: make([]R, 0, 1)})
			}
			groups[i].Records = append(groups[i].Records, rec)
		}
	}
}

// FeedStats counts what a Feeder enqueued.
type FeedStats struct {
	Items   int
	Records int
	// Dropped counts invalid work items that were never enqueued.
	Dropped int
}

// Feeder turns a record source into WorkItems on the work queue. When Group
// is set the source is grouped once up front; otherwise each record becomes
// its own item keyed by Key.
type Feeder[K comparable, R any] struct {
	Source Iterator[R]
	Group  GroupFn[K, R]
	Key    KeyFn[K, R]
	Out    *Queue[Message[WorkItem[K, R]]]
	Flag   *Flag
	Logger *logger.Logger
}

// Run feeds the work queue until the source is exhausted or the flag is
// aborted. It does not enqueue end-of-stream markers and closes the source
// before returning. A panic in the source or in Group or Key aborts the run
// with a source error.
func (f *Feeder[K, R]) Run(ctx context.Context) (stats FeedStats, err error) {
	log := orNop(f.Logger).WithComponent("pipeline.feeder")
	defer func() {
		if r := recover(); r != nil {
			err = raise(ctx, f.Flag, apperrors.SourceError(fmt.Errorf("panic: %v", r)))
		}
	}()
	defer func() {
		if cerr := f.Source.Close(); cerr != nil {
			log.Warn("closing record source", logger.ErrorFields("close", cerr))
		}
	}()

	if f.Group != nil {
		groups, gerr := f.Group(ctx, f.Source)
		if gerr != nil {
			return stats, raise(ctx, f.Flag, apperrors.SourceError(gerr))
		}
		log.Debug("source grouped", logger.Fields("groups", len(groups)))
		for _, g := range groups {
			if !f.emit(WorkItem[K, R]{Key: g.Key, Payload: g.Records}, &stats, log) {
				break
			}
		}
		return stats, nil
	}

	for index := 0; f.Flag.Alive(); index++ {
		rec, ok, nerr := f.Source.Next(ctx)
		if nerr != nil {
			return stats, raise(ctx, f.Flag, apperrors.SourceError(nerr).WithDetail("index", index))
		}
		if !ok {
			break
		}
		if !f.emit(WorkItem[K, R]{Key: f.Key(index, rec), Payload: []R{rec}}, &stats, log) {
			break
		}
	}
	return stats, nil
}

// emit enqueues item unless it is invalid. It returns false once the flag
// is aborted.
func (f *Feeder[K, R]) emit(item WorkItem[K, R], stats *FeedStats, log *logger.Logger) bool {
	if !item.Valid() {
		stats.Dropped++
		log.Debug("dropping invalid work item", logger.Fields(logger.FieldKey, item.Key))
		return true
	}
	if !f.Out.Push(f.Flag, Item(item)) {
		return false
	}
	stats.Items++
	stats.Records += item.RecordCount()
	return true
}
