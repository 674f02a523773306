// Package version carries build metadata, set with -ldflags -X.
package version

import "fmt"

var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for the version command and the
// server's startup line.
func String() string {
	return fmt.Sprintf("semlog %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
