// Package version reports the build version of the sieve binary.
//
// Values are injected at link time:
//
//	go build -ldflags "-X github.com/kbukum/sieve/version.Version=v1.2.0 \
//	    -X github.com/kbukum/sieve/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Missing values fall back to the VCS stamp the Go toolchain embeds.
package version
