// Package source provides record sources backed by files.
//
// Files expands glob patterns (including ** for any depth) and returns an
// iterator that opens the matched files one at a time, in sorted path
// order, decoding each with the format and compression inferred from its
// name unless overridden.
package source
