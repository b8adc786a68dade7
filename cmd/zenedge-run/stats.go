package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zen-systems/zenedge/internal/wire"
)

func statsCmd() *cobra.Command {
	var dumpPath string
	var jobID uint32

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-job flight-recorder stats from a dumped run",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := loadEvents(dumpPath)
			if err != nil {
				return err
			}

			var totalStepUS uint64
			var violations int
			var minTS, maxTS uint64
			seen := false

			for _, e := range events {
				if e.JobID != jobID {
					continue
				}
				if e.Type == wire.EventStepEnd {
					totalStepUS += uint64(e.Extra)
				}
				switch e.Type {
				case wire.EventContractBudgetWarn, wire.EventContractBudgetExceed,
					wire.EventContractSafeMode, wire.EventMemAllocFail,
					wire.EventMemLocalityMiss, wire.EventJobReject,
					wire.EventRecorderSpanDropped:
					violations++
				}
				if !seen || e.TimestampUS < minTS {
					minTS = e.TimestampUS
				}
				if !seen || e.TimestampUS > maxTS {
					maxTS = e.TimestampUS
				}
				seen = true
			}

			if !seen {
				fmt.Printf("job %d: no events recorded\n", jobID)
				return nil
			}

			fmt.Printf("job %d: total_step_us=%d violations=%d wall_span_us=%d\n",
				jobID, totalStepUS, violations, maxTS-minTS)
			return nil
		},
	}

	cmd.Flags().StringVar(&dumpPath, "dump", "", "path to a JSON event dump produced by 'run --dump'")
	cmd.Flags().Uint32Var(&jobID, "job", 0, "job id to summarize")
	_ = cmd.MarkFlagRequired("dump")

	return cmd
}
