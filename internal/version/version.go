// Package version holds build metadata injected at compile time via
// -ldflags. Local builds fall back to the zero values below.
package version

var (
	// Version is the semantic version of the binary (e.g. "v0.4.1").
	Version = "dev"

	// Commit is the short git commit hash the binary was built from.
	Commit = "unknown"

	// BuildDate is the UTC build timestamp in RFC 3339 format.
	BuildDate = "unknown"
)
