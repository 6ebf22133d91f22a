// Package errors provides the structured error type shared by every pipeline
// stage. Each error carries a machine-readable code naming the stage that
// failed (source, transform, sink) and whether a retry may succeed.
package errors
