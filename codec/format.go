package codec

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Record is one decoded object. Nested values are map[string]any, []any
// and scalars, so records can be queried with JSONPath directly.
type Record = map[string]any

// Format is a record stream encoding.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatCSV     Format = "csv"
	FormatMsgpack Format = "msgpack"
)

// Compression is a stream compression scheme.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseFormat parses a format name. "json" and "ndjson" are accepted as
// jsonl, "mpk" as msgpack.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jsonl", "json", "ndjson":
		return FormatJSONL, nil
	case "csv":
		return FormatCSV, nil
	case "msgpack", "mpk":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unknown record format %q", s)
	}
}

// ParseCompression parses a compression name. The empty string is none.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}

// CompressionFromPath infers the compression from the last extension.
func CompressionFromPath(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// FormatFromPath infers the format from the extension, looking past a
// trailing compression extension.
func FormatFromPath(path string) (Format, error) {
	base := path
	if CompressionFromPath(path) != CompressionNone {
		base = strings.TrimSuffix(path, filepath.Ext(path))
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer record format of %q", path)
	}
	return ParseFormat(ext)
}
