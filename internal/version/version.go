// Package version holds build metadata set via -ldflags at build time.
package version

var (
	// Version is the release tag, e.g. "v1.4.2". "dev" when unset.
	Version = "dev"
	// Commit is the short git SHA of the build.
	Commit = "unknown"
)
