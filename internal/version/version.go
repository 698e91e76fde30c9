// Package version holds build metadata injected via ldflags, e.g.
//
//	-X github.com/kailas-cloud/stockmarks/internal/version.Version=v0.3.0
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String is the build line printed by the version command.
func String() string {
	return fmt.Sprintf("stockmarks %s (commit %s, built %s)", Version, Commit, Date)
}

// UserAgent identifies outgoing search requests when none is configured.
func UserAgent() string {
	return "stockmarks/" + Version
}
