package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zen-systems/zenedge"
	"github.com/zen-systems/zenedge/config"
	"github.com/zen-systems/zenedge/internal/contract"
	"github.com/zen-systems/zenedge/internal/platform"
)

func runCmd() *cobra.Command {
	var configPath string
	var dumpPath string
	var useSim bool
	var memoryMB int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a job graph against a kernel context and print flight-recorder stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.Load(configPath)
			if err != nil {
				return err
			}
			graph, c, err := doc.Build()
			if err != nil {
				return err
			}

			availableBytes := uint64(memoryMB) << 20

			var plat platform.Platform
			if useSim {
				plat = zenedge.NewSimPlatform(zenedge.MinSharedRegionSize, availableBytes)
			} else {
				hosted, err := platform.NewHosted(zenedge.MinSharedRegionSize, zenedge.NewSyntheticMemoryMap(availableBytes))
				if err != nil {
					return fmt.Errorf("hosted platform: %w (pass --sim on a non-linux host)", err)
				}
				plat = hosted
			}

			k := zenedge.NewKernel(plat)

			if result := k.Admit(c, graph); result != contract.AdmitOK {
				return fmt.Errorf("job %d rejected at admission (code=%d)", c.JobID, result)
			}

			acc := zenedge.NewMockAccelerator(k)
			acc.Start()
			defer acc.Stop()

			result := k.RunJob(graph, c)
			fmt.Printf("job %d: %d steps completed, aborted=%v\n", c.JobID, result.StepsCompleted, result.Aborted)

			stats := k.Stats(c.JobID)
			fmt.Printf("  total_step_us=%d violations=%d wall_span_us=%d\n",
				stats.TotalStepUS, stats.Violations, stats.WallSpanUS)

			if dumpPath != "" {
				if err := dumpEvents(dumpPath, k.Recorder.Events()); err != nil {
					return err
				}
				fmt.Printf("events dumped to %s\n", dumpPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to job/contract YAML document")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "optional path to dump flight-recorder events as JSON")
	cmd.Flags().BoolVar(&useSim, "sim", false, "run against the deterministic Sim platform instead of the hosted platform")
	cmd.Flags().IntVar(&memoryMB, "memory-mb", 128, "available memory region size in MiB")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
