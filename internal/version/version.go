// Package version carries build metadata stamped in through ldflags.
package version

//nolint:revive // Overwritten at build time via -ldflags.
var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the short git revision the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)
