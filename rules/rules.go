package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/theory/jsonpath"

	"github.com/kbukum/sieve/codec"
	apperrors "github.com/kbukum/sieve/errors"
	"github.com/kbukum/sieve/logger"
	"github.com/kbukum/sieve/pipeline"
)

// Log fields and statuses written by Process.
const (
	FieldFailedRules = "failed_rules"
	StatusPassed     = "passed"
	StatusRejected   = pipeline.StatusRejected
)

// KeyFunc compiles expr into a function returning the first node it
// selects, as a string. Records where expr selects nothing, or only null,
// get the empty key.
func KeyFunc(expr string) (func(codec.Record) string, error) {
	p, err := jsonpath.Parse(expr)
	if err != nil {
		return nil, apperrors.InvalidConfig("group_by", err.Error()).WithCause(err)
	}
	return func(rec codec.Record) string {
		for _, node := range p.Select(rec) {
			if node != nil {
				return stringify(node)
			}
		}
		return ""
	}, nil
}

// GroupBy returns a GroupFn grouping records by the key expr selects.
func GroupBy(expr string) (pipeline.GroupFn[string, codec.Record], error) {
	key, err := KeyFunc(expr)
	if err != nil {
		return nil, err
	}
	return pipeline.GroupBy(key), nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return fmt.Sprint(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// Rule is a compiled assertion.
type Rule struct {
	expr string
	path *jsonpath.Path
}

// String returns the source expression.
func (r Rule) String() string { return r.expr }

// Check reports whether rec satisfies r.
func (r Rule) Check(rec codec.Record) bool {
	for _, node := range r.path.Select(rec) {
		if node != nil {
			return true
		}
	}
	return false
}

// Ruleset is an ordered list of rules.
type Ruleset struct {
	rules []Rule
}

// Compile parses exprs into a Ruleset. An empty Ruleset passes everything.
func Compile(exprs ...string) (*Ruleset, error) {
	rs := &Ruleset{rules: make([]Rule, 0, len(exprs))}
	for _, expr := range exprs {
		p, err := jsonpath.Parse(expr)
		if err != nil {
			return nil, apperrors.InvalidConfig("require", fmt.Sprintf("%q: %v", expr, err)).WithCause(err)
		}
		rs.rules = append(rs.rules, Rule{expr: expr, path: p})
	}
	return rs, nil
}

// Rules returns the compiled rules.
func (rs *Ruleset) Rules() []Rule { return rs.rules }

// Failed returns the rules some record in records does not satisfy, in
// ruleset order.
func (rs *Ruleset) Failed(records []codec.Record) []string {
	var failed []string
	for _, rule := range rs.rules {
		for _, rec := range records {
			if !rule.Check(rec) {
				failed = append(failed, rule.expr)
				break
			}
		}
	}
	return failed
}

// Process returns a ProcessFn that applies rs to whole groups: the group
// passes with its records unchanged only if none of its records fails a
// rule, and is rejected as a whole otherwise.
func Process[K comparable](rs *Ruleset) pipeline.ProcessFn[K, codec.Record, codec.Record] {
	return func(ctx context.Context, item pipeline.WorkItem[K, codec.Record]) (pipeline.ResultItem[K, codec.Record, codec.Record], error) {
		if err := ctx.Err(); err != nil {
			return pipeline.ResultItem[K, codec.Record, codec.Record]{}, err
		}
		log := pipeline.LogEntries{}.
			With(logger.FieldKey, item.Key).
			With(logger.FieldRecords, item.RecordCount())

		failed := rs.Failed(item.Payload)
		if len(failed) > 0 {
			log = log.With(logger.FieldStatus, StatusRejected).With(FieldFailedRules, failed)
			return pipeline.Reject[K, codec.Record, codec.Record](item, log), nil
		}
		computed := make([]codec.Record, len(item.Payload))
		copy(computed, item.Payload)
		return pipeline.Pass(item, computed, log.With(logger.FieldStatus, StatusPassed)), nil
	}
}

// MaxGroupSize returns a FilterFn rejecting groups with more than n
// records. n <= 0 means no limit.
func MaxGroupSize[K comparable, R any](n int) pipeline.FilterFn[K, R] {
	return func(_ context.Context, item pipeline.WorkItem[K, R]) (pipeline.WorkItem[K, R], bool, error) {
		if n > 0 && item.RecordCount() > n {
			return item, false, nil
		}
		return item, true, nil
	}
}
