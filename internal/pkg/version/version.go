// Package version reports build information for the cc binary.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version (injected at build time via ldflags)
	Version = "dev"

	// GitCommit is the git commit hash (injected at build time via ldflags)
	GitCommit = "unknown"

	// BuildDate is the build date (injected at build time via ldflags)
	BuildDate = "unknown"
)

// Short returns the version with an abbreviated commit, when known
func Short() string {
	if GitCommit != "unknown" && len(GitCommit) > 7 {
		return fmt.Sprintf("%s-%s", Version, GitCommit[:7])
	}
	return Version
}

// Full returns the version line printed by "cc --version"
func Full() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s %s/%s)",
		Short(), GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
