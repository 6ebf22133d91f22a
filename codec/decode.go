package codec

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Decoder reads records one at a time. Decode returns io.EOF once the
// stream is exhausted.
type Decoder interface {
	Decode() (Record, error)
}

// DecodeError locates a malformed record. Pos is a 1-based line number
// for jsonl and csv, and a 1-based record index for msgpack.
type DecodeError struct {
	Format Format
	Pos    int
	Err    error
}

func (e *DecodeError) Error() string {
	unit := "line"
	if e.Format == FormatMsgpack {
		unit = "record"
	}
	return fmt.Sprintf("%s %s %d: %v", e.Format, unit, e.Pos, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecoder returns a Decoder for f reading from r.
func NewDecoder(r io.Reader, f Format) (Decoder, error) {
	switch f {
	case FormatJSONL:
		return &jsonlDecoder{r: bufio.NewReader(r)}, nil
	case FormatCSV:
		return &csvDecoder{r: csv.NewReader(r)}, nil
	case FormatMsgpack:
		dec := msgpack.NewDecoder(r)
		dec.UseLooseInterfaceDecoding(true)
		return &msgpackDecoder{dec: dec}, nil
	default:
		return nil, fmt.Errorf("unsupported record format %q", f)
	}
}

type jsonlDecoder struct {
	r    *bufio.Reader
	line int
}

func (d *jsonlDecoder) Decode() (Record, error) {
	for {
		raw, err := d.r.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			return nil, err
		}
		d.line++
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}
		var rec Record
		if uerr := json.Unmarshal(raw, &rec); uerr != nil {
			return nil, &DecodeError{Format: FormatJSONL, Pos: d.line, Err: uerr}
		}
		if rec == nil {
			return nil, &DecodeError{Format: FormatJSONL, Pos: d.line, Err: errors.New("record is not an object")}
		}
		return rec, nil
	}
}

type csvDecoder struct {
	r      *csv.Reader
	header []string
}

func (d *csvDecoder) Decode() (Record, error) {
	if d.header == nil {
		header, err := d.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, d.wrap(err)
		}
		d.header = header
	}
	row, err := d.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, d.wrap(err)
	}
	rec := make(Record, len(d.header))
	for i, col := range d.header {
		rec[col] = row[i]
	}
	return rec, nil
}

func (d *csvDecoder) wrap(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &DecodeError{Format: FormatCSV, Pos: perr.Line, Err: perr.Err}
	}
	line, _ := d.r.FieldPos(0)
	return &DecodeError{Format: FormatCSV, Pos: line, Err: err}
}

type msgpackDecoder struct {
	dec   *msgpack.Decoder
	index int
}

func (d *msgpackDecoder) Decode() (Record, error) {
	d.index++
	rec, err := d.dec.DecodeMap()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &DecodeError{Format: FormatMsgpack, Pos: d.index, Err: err}
	}
	if rec == nil {
		return nil, &DecodeError{Format: FormatMsgpack, Pos: d.index, Err: errors.New("record is nil")}
	}
	return rec, nil
}
