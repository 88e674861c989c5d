// Package version carries build identification, overridden at link time via
// -ldflags "-X github.com/wildtrack-data/ethogram/internal/version.Version=...".
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build identification for --version output.
func String() string {
	return fmt.Sprintf("ethogram %s (%s, built %s)", Version, GitSHA, BuildTime)
}
