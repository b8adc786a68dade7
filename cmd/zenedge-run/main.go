// Command zenedge-run is a demo harness: it loads a YAML job/contract
// document, runs it to completion against a zenedge Kernel, and
// prints the resulting flight-recorder stats. It also supports
// dumping a run's flight-recorder events to a JSON file for later
// inspection via the stats/replay subcommands, mirroring the
// teacher's own MetricsSnapshot-after-the-fact inspection story.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zenedge-run",
		Short: "Run and inspect ZENEDGE job graphs against a kernel context",
	}

	root.AddCommand(runCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(replayCmd())
	return root
}
