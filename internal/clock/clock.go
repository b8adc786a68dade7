// Package clock implements the time source component (spec.md §4.1):
// a monotonic cycle counter plus a calibrated cycles-per-microsecond
// conversion, set once at init and never changed.
package clock

import "github.com/zen-systems/zenedge/internal/platform"

// Clock converts a Platform's raw cycle counter into microseconds
// using a calibration computed once at Init.
type Clock struct {
	plat        platform.Platform
	bootCycles  uint64
	cyclesPerUS uint64
}

// New creates a Clock and calibrates it against plat by waiting
// platform.CalibrationWait on the platform timer (SleepMS) and
// measuring elapsed cycles. If the
// platform cannot make progress during the wait (elapsed cycles are
// zero), the documented fallback of 1000 cycles/µs is used instead
// (spec.md §4.1).
func New(plat platform.Platform) *Clock {
	start := plat.NowCycles()
	plat.SleepMS(uint64(platform.CalibrationWait.Milliseconds()))
	elapsed := plat.NowCycles() - start

	cyclesPerUS := platform.DefaultCyclesPerUS
	if elapsed > 0 {
		waitUS := uint64(platform.CalibrationWait.Microseconds())
		if waitUS > 0 {
			cyclesPerUS = int(elapsed / waitUS)
			if cyclesPerUS == 0 {
				cyclesPerUS = platform.DefaultCyclesPerUS
			}
		}
	}

	return &Clock{
		plat:        plat,
		bootCycles:  plat.NowCycles(),
		cyclesPerUS: uint64(cyclesPerUS),
	}
}

// NowCycles returns the platform's raw monotonic cycle counter.
func (c *Clock) NowCycles() uint64 {
	return c.plat.NowCycles()
}

// NowUS returns microseconds elapsed since this Clock was created.
func (c *Clock) NowUS() uint64 {
	return c.CyclesToUS(c.plat.NowCycles() - c.bootCycles)
}

// CyclesToUS converts a cycle count to microseconds using the
// calibration fixed at construction time.
func (c *Clock) CyclesToUS(cycles uint64) uint64 {
	if c.cyclesPerUS == 0 {
		return 0
	}
	return cycles / c.cyclesPerUS
}

// USToCycles converts microseconds to a cycle count using the
// calibration fixed at construction time.
func (c *Clock) USToCycles(us uint64) uint64 {
	return us * c.cyclesPerUS
}

// CyclesPerUS returns the calibration value fixed at construction.
func (c *Clock) CyclesPerUS() uint64 {
	return c.cyclesPerUS
}
