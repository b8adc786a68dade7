package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func replayCmd() *cobra.Command {
	var dumpPath string
	var jobID uint32
	var filterJob bool

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print a dumped run's flight-recorder events oldest-to-newest",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := loadEvents(dumpPath)
			if err != nil {
				return err
			}

			for _, e := range events {
				if filterJob && e.JobID != jobID {
					continue
				}
				fmt.Printf("%10d us  job=%-6d step=%-4d %-24s extra=%d\n",
					e.TimestampUS, e.JobID, e.StepID, eventName(e.Type), e.Extra)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dumpPath, "dump", "", "path to a JSON event dump produced by 'run --dump'")
	cmd.Flags().Uint32Var(&jobID, "job", 0, "restrict output to this job id")
	cmd.Flags().BoolVar(&filterJob, "filter-job", false, "enable the --job filter (unset prints every job)")
	_ = cmd.MarkFlagRequired("dump")

	return cmd
}
