package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kbukum/sieve/codec"
	"github.com/kbukum/sieve/logger"
	"github.com/kbukum/sieve/pipeline"
)

// Options control how input files are decoded. Zero values infer format
// and compression from each file's name.
type Options struct {
	Format      codec.Format
	Compression codec.Compression
	Logger      *logger.Logger
}

// FileError locates a failure in an input file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// Expand resolves glob patterns to a sorted, de-duplicated list of regular
// files. A pattern matching nothing is an error.
func Expand(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, errors.New("no input patterns")
	}
	seen := make(map[string]bool)
	var result []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		found := 0
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			found++
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = m
			}
			if !seen[abs] {
				seen[abs] = true
				result = append(result, m)
			}
		}
		if found == 0 {
			return nil, fmt.Errorf("pattern %q matches no files", pattern)
		}
	}
	sort.Strings(result)
	return result, nil
}

// FileIterator reads records from a list of files in order. Only one file
// is open at a time.
type FileIterator struct {
	paths []string
	opts  Options
	log   *logger.Logger

	next    int
	current *streamIter
	file    *os.File
	records int
}

var _ pipeline.Iterator[codec.Record] = (*FileIterator)(nil)

// Files expands patterns and returns an iterator over their records. No
// file is opened until the first call to Next.
func Files(patterns []string, opts Options) (*FileIterator, error) {
	paths, err := Expand(patterns)
	if err != nil {
		return nil, err
	}
	if opts.Format == "" {
		for _, p := range paths {
			if _, err := codec.FormatFromPath(p); err != nil {
				return nil, err
			}
		}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &FileIterator{paths: paths, opts: opts, log: log.WithComponent("source")}, nil
}

// Paths returns the files the iterator reads, in order.
func (it *FileIterator) Paths() []string { return it.paths }

// Records returns the number of records read so far.
func (it *FileIterator) Records() int { return it.records }

// Next returns the next record, moving on to the next file when the
// current one is exhausted.
func (it *FileIterator) Next(ctx context.Context) (codec.Record, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if it.current == nil {
			if it.next >= len(it.paths) {
				return nil, false, nil
			}
			if err := it.open(it.paths[it.next]); err != nil {
				return nil, false, err
			}
			it.next++
		}
		rec, ok, err := it.current.Next(ctx)
		if err != nil {
			return nil, false, &FileError{Path: it.file.Name(), Err: err}
		}
		if ok {
			it.records++
			return rec, true, nil
		}
		if err := it.closeCurrent(); err != nil {
			return nil, false, err
		}
	}
}

// Close closes the open file, if any.
func (it *FileIterator) Close() error {
	it.next = len(it.paths)
	return it.closeCurrent()
}

func (it *FileIterator) open(path string) error {
	format := it.opts.Format
	if format == "" {
		f, err := codec.FormatFromPath(path)
		if err != nil {
			return &FileError{Path: path, Err: err}
		}
		format = f
	}
	compression := it.opts.Compression
	if compression == "" {
		compression = codec.CompressionFromPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return &FileError{Path: path, Err: err}
	}
	stream, err := newStream(f, format, compression)
	if err != nil {
		f.Close()
		return &FileError{Path: path, Err: err}
	}
	it.file = f
	it.current = stream
	it.log.Debug("reading input file", logger.Fields("path", path, "format", string(format), "compression", string(compression)))
	return nil
}

func (it *FileIterator) closeCurrent() error {
	if it.current == nil {
		return nil
	}
	err := it.current.Close()
	if cerr := it.file.Close(); err == nil {
		err = cerr
	}
	it.current, it.file = nil, nil
	return err
}

// Reader returns an iterator over a single stream, such as stdin. The
// format must be given; closing the iterator does not close r.
func Reader(r io.Reader, format codec.Format, compression codec.Compression) (pipeline.Iterator[codec.Record], error) {
	s, err := newStream(r, format, compression)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type streamIter struct {
	rc  io.ReadCloser
	dec codec.Decoder
}

func newStream(r io.Reader, format codec.Format, compression codec.Compression) (*streamIter, error) {
	rc, err := codec.NewReader(r, compression)
	if err != nil {
		return nil, err
	}
	dec, err := codec.NewDecoder(rc, format)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return &streamIter{rc: rc, dec: dec}, nil
}

func (s *streamIter) Next(ctx context.Context) (codec.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	rec, err := s.dec.Decode()
	if errors.Is(err, io.EOF) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *streamIter) Close() error { return s.rc.Close() }
