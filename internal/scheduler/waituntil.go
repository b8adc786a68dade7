package scheduler

import (
	"time"

	"github.com/zen-systems/zenedge/internal/clock"
	"github.com/zen-systems/zenedge/internal/platform"
)

// WaitUntil implements spec.md §9's adaptive-poll helper: spin-wait
// with a relaxation hint for up to spinBudget of logical time, then
// fall back to sleeping in pollInterval increments up to a total
// deadline. It returns false if predicate never became true before
// deadline.
func WaitUntil(clk *clock.Clock, plat platform.Platform, predicate func() bool, spinBudget, pollInterval, deadline time.Duration) bool {
	startUS := clk.NowUS()
	spinDeadlineUS := startUS + uint64(spinBudget.Microseconds())
	totalDeadlineUS := startUS + uint64(deadline.Microseconds())

	for clk.NowUS() < spinDeadlineUS {
		if predicate() {
			return true
		}
		plat.BusyWaitTicks(1)
	}

	intervalMS := uint64(pollInterval.Milliseconds())
	if intervalMS == 0 {
		intervalMS = 1
	}
	for clk.NowUS() < totalDeadlineUS {
		if predicate() {
			return true
		}
		plat.SleepMS(intervalMS)
	}
	return predicate()
}
