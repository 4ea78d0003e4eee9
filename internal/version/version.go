// Package version holds build metadata stamped in via -ldflags.
package version

import "fmt"

var (
	// Version is the release version, e.g. "v0.3.1".
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// Info returns a one-line human-readable version string.
func Info() string {
	return fmt.Sprintf("termscript %s (commit %s, built %s)", Version, Commit, Date)
}
