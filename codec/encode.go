package codec

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoder writes records. Flush must be called before the underlying
// writer is closed.
type Encoder interface {
	Encode(rec Record) error
	Flush() error
}

// NewEncoder returns an Encoder for f writing to w. A CSV encoder takes
// its columns from the sorted keys of the first record.
func NewEncoder(w io.Writer, f Format) (Encoder, error) {
	switch f {
	case FormatJSONL:
		bw := bufio.NewWriter(w)
		return &jsonlEncoder{w: bw, enc: json.NewEncoder(bw)}, nil
	case FormatCSV:
		return &csvEncoder{w: csv.NewWriter(w)}, nil
	case FormatMsgpack:
		bw := bufio.NewWriter(w)
		enc := msgpack.NewEncoder(bw)
		enc.SetSortMapKeys(true)
		return &msgpackEncoder{w: bw, enc: enc}, nil
	default:
		return nil, fmt.Errorf("unsupported record format %q", f)
	}
}

type jsonlEncoder struct {
	w   *bufio.Writer
	enc *json.Encoder
}

func (e *jsonlEncoder) Encode(rec Record) error { return e.enc.Encode(rec) }

func (e *jsonlEncoder) Flush() error { return e.w.Flush() }

type csvEncoder struct {
	w      *csv.Writer
	header []string
	cols   map[string]struct{}
	row    []string
}

func (e *csvEncoder) Encode(rec Record) error {
	if e.header == nil {
		e.header = make([]string, 0, len(rec))
		e.cols = make(map[string]struct{}, len(rec))
		for k := range rec {
			e.header = append(e.header, k)
			e.cols[k] = struct{}{}
		}
		sort.Strings(e.header)
		if err := e.w.Write(e.header); err != nil {
			return err
		}
		e.row = make([]string, len(e.header))
	}
	for k := range rec {
		if _, ok := e.cols[k]; !ok {
			return fmt.Errorf("csv: field %q is not in the header %v", k, e.header)
		}
	}
	for i, col := range e.header {
		s, err := csvValue(rec[col])
		if err != nil {
			return fmt.Errorf("csv: field %q: %w", col, err)
		}
		e.row[i] = s
	}
	return e.w.Write(e.row)
}

func (e *csvEncoder) Flush() error {
	e.w.Flush()
	return e.w.Error()
}

func csvValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

type msgpackEncoder struct {
	w   *bufio.Writer
	enc *msgpack.Encoder
}

func (e *msgpackEncoder) Encode(rec Record) error { return e.enc.Encode(rec) }

func (e *msgpackEncoder) Flush() error { return e.w.Flush() }
