//go:build !statsview
// +build !statsview

package diag

import "io"

// LaunchStatsview is a no-op unless built with -tags statsview.
func LaunchStatsview(output io.Writer) {}

func StatsviewAvailable() bool {
	return false
}
