//go:build statsview
// +build statsview

package diag

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const StatsviewAddress = "localhost:12600"

// LaunchStatsview serves runtime charts in the background.
func LaunchStatsview(output io.Writer) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(StatsviewAddress))
		mgr := statsview.New()
		mgr.Start()
	}()

	fmt.Fprintf(output, "stats server available at %s/debug/statsview\n", StatsviewAddress)
}

func StatsviewAvailable() bool {
	return true
}
