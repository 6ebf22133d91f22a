// Package codec reads and writes record streams.
//
// A Record is a decoded JSON-like object. Three stream formats are
// supported: newline-delimited JSON, CSV with a header row, and a
// concatenated stream of msgpack maps. Any of them may be wrapped in gzip
// or zstd compression; both are inferred from file extensions:
//
//	events.jsonl      jsonl, none
//	events.csv.gz     csv, gzip
//	events.msgpack.zst msgpack, zstd
package codec
