// Package sink provides pipeline sinks: format-encoded, optionally
// compressed files, and an in-memory sink for tests and embedding.
package sink
