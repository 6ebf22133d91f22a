package pipeline

import (
	"bytes"
	"encoding/json"
	"reflect"

	"gopkg.in/yaml.v3"
)

// LogEntry is one field of a LogEntries mapping.
type LogEntry struct {
	Field string
	Value any
}

// LogEntries is an ordered field → value mapping describing what happened to
// one work item.
type LogEntries []LogEntry

// With returns a copy of l with field set to value. An existing field keeps
// its position.
func (l LogEntries) With(field string, value any) LogEntries {
	out := make(LogEntries, len(l), len(l)+1)
	copy(out, l)
	for i := range out {
		if out[i].Field == field {
			out[i].Value = value
			return out
		}
	}
	return append(out, LogEntry{Field: field, Value: value})
}

// Get returns the value of field.
func (l LogEntries) Get(field string) (any, bool) {
	for _, e := range l {
		if e.Field == field {
			return e.Value, true
		}
	}
	return nil, false
}

// Fields returns l as a map for structured logging.
func (l LogEntries) Fields() map[string]interface{} {
	m := make(map[string]interface{}, len(l))
	for _, e := range l {
		m[e.Field] = e.Value
	}
	return m
}

// MarshalJSON encodes l as a JSON object in field order.
func (l LogEntries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Field)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes l as a YAML mapping in field order.
func (l LogEntries) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range l {
		var k, v yaml.Node
		if err := k.Encode(e.Field); err != nil {
			return nil, err
		}
		if err := v.Encode(e.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &k, &v)
	}
	return node, nil
}

// WorkItem is one unit of input handed from the Feeder to a Worker: a group
// key and the records that belong to it.
type WorkItem[K comparable, R any] struct {
	Key     K
	Payload []R
}

// Valid reports whether the item has a key and a payload. An empty, non-nil
// payload is valid.
func (w WorkItem[K, R]) Valid() bool {
	return w.Payload != nil && !isNil(w.Key)
}

// RecordCount is the number of records the item carries.
func (w WorkItem[K, R]) RecordCount() int { return len(w.Payload) }

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Chan, reflect.Slice, reflect.Func, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// ResultItem is one unit of output handed from a Worker to the Collector.
type ResultItem[K comparable, R, O any] struct {
	Key K
	// Source holds the original records, written to the fail sink on rejection.
	Source []R
	// Computed holds the output records, written to the pass sink when Valid.
	Computed []O
	Valid    bool
	Log      LogEntries
	// RecordCount is the number of original records the item represents.
	RecordCount int
}

// Pass builds a valid result for item.
func Pass[K comparable, R, O any](item WorkItem[K, R], computed []O, log LogEntries) ResultItem[K, R, O] {
	return ResultItem[K, R, O]{
		Key:         item.Key,
		Source:      item.Payload,
		Computed:    computed,
		Valid:       true,
		Log:         log,
		RecordCount: item.RecordCount(),
	}
}

// Reject builds an invalid result for item.
func Reject[K comparable, R, O any](item WorkItem[K, R], log LogEntries) ResultItem[K, R, O] {
	return ResultItem[K, R, O]{
		Key:         item.Key,
		Source:      item.Payload,
		Log:         log,
		RecordCount: item.RecordCount(),
	}
}

// seal ties res to the work item it was produced from. A valid result with
// no computed records, nil or empty, is not well-formed and is downgraded to
// a rejection so every passed record has output in the pass sink.
func seal[K comparable, R, O any](item WorkItem[K, R], res ResultItem[K, R, O]) ResultItem[K, R, O] {
	res.Key = item.Key
	res.Source = item.Payload
	res.RecordCount = item.RecordCount()
	if res.Log == nil {
		res.Log = LogEntries{}
	}
	if res.Valid && len(res.Computed) == 0 {
		res.Valid = false
		res.Log = res.Log.With("status", StatusMalformed)
	}
	return res
}

// Status values written to the "status" log field by the pipeline itself.
const (
	StatusRejected  = "rejected"
	StatusMalformed = "malformed"
)

// Message is what flows through the queues: either an item or the
// end-of-stream marker.
type Message[T any] struct {
	value T
	end   bool
}

// Item wraps v in a Message.
func Item[T any](v T) Message[T] { return Message[T]{value: v} }

// EndOfStream returns the marker that tells the receiving stage no more
// items follow from this sender.
func EndOfStream[T any]() Message[T] { return Message[T]{end: true} }

// IsEnd reports whether m is the end-of-stream marker.
func (m Message[T]) IsEnd() bool { return m.end }

// Value returns the wrapped item, or the zero value for end-of-stream.
func (m Message[T]) Value() T { return m.value }
