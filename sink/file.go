package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kbukum/sieve/codec"
	"github.com/kbukum/sieve/pipeline"
)

// FileOptions control how a file sink encodes records. Zero values infer
// format and compression from the path.
type FileOptions struct {
	Format      codec.Format
	Compression codec.Compression
	// Perm is the file mode for new files, 0644 when zero.
	Perm os.FileMode
}

// File writes records to a file. It is not safe for concurrent use.
type File struct {
	path    string
	f       *os.File
	w       io.WriteCloser
	enc     codec.Encoder
	records int
	closed  bool
}

var _ pipeline.Sink[codec.Record] = (*File)(nil)

// OpenFile creates path, and any missing parent directories, truncating an
// existing file.
func OpenFile(path string, opts FileOptions) (*File, error) {
	format := opts.Format
	if format == "" {
		f, err := codec.FormatFromPath(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	compression := opts.Compression
	if compression == "" {
		compression = codec.CompressionFromPath(path)
	}
	perm := opts.Perm
	if perm == 0 {
		perm = 0o644
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return nil, err
	}
	w, err := codec.NewWriter(f, compression)
	if err != nil {
		f.Close()
		return nil, err
	}
	enc, err := codec.NewEncoder(w, format)
	if err != nil {
		w.Close()
		f.Close()
		return nil, err
	}
	return &File{path: path, f: f, w: w, enc: enc}, nil
}

// FileOpener returns an opener that creates the file on first use, so a
// run that writes nothing leaves no file behind.
func FileOpener(path string, opts FileOptions) pipeline.SinkOpener[codec.Record] {
	return func(context.Context) (pipeline.Sink[codec.Record], error) {
		return OpenFile(path, opts)
	}
}

// Write encodes records in order.
func (s *File) Write(ctx context.Context, records []codec.Record) error {
	if s.closed {
		return pipeline.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rec := range records {
		if err := s.enc.Encode(rec); err != nil {
			return fmt.Errorf("write %s: %w", s.path, err)
		}
		s.records++
	}
	return nil
}

// Close flushes buffered records and closes the file.
func (s *File) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.enc.Flush()
	if cerr := s.w.Close(); err == nil {
		err = cerr
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}

// ID returns the file path.
func (s *File) ID() string { return s.path }

// Records returns the number of records written.
func (s *File) Records() int { return s.records }
