// Package recorder implements the flight recorder (spec.md §4.2): a
// fixed-capacity, power-of-two ring of events that a single producer
// appends to without blocking or allocating, plus a small fixed table
// of in-flight spans for begin_span/end_span bracketing.
package recorder

import (
	"sync"
	"sync/atomic"

	"github.com/zen-systems/zenedge/internal/clock"
	"github.com/zen-systems/zenedge/internal/constants"
	"github.com/zen-systems/zenedge/internal/wire"
)

// InvalidHandle is returned by BeginSpan when the active-span table is
// full; EndSpan on it is a documented no-op.
const InvalidHandle = 0

// Recorder is a fixed-capacity event ring plus an active-span table.
// Safe for a single producer; concurrent reads for diagnostics are
// supported but may observe a torn in-flight slot (spec.md §4.2
// "Concurrency").
type Recorder struct {
	clk      *clock.Clock
	mask     uint64
	events   []wire.FlightEvent
	head     uint64 // atomic: next write index, monotone
	spanMu   sync.Mutex
	spans    [constants.MaxActiveSpans]span
	spansUse [constants.MaxActiveSpans]bool
}

type span struct {
	startCycles uint64
	startType   uint8
	jobID       uint32
	stepID      uint32
}

// New creates a Recorder with the given capacity, rounded up to the
// next power of two if it is not already one. clk supplies event
// timestamps.
func New(clk *clock.Clock, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = constants.DefaultRecorderCapacity
	}
	capacity = nextPowerOfTwo(capacity)
	return &Recorder{
		clk:    clk,
		mask:   uint64(capacity - 1),
		events: make([]wire.FlightEvent, capacity),
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Log appends one event stamped with the current µs and cycle count.
// Non-blocking, never allocates.
func (r *Recorder) Log(eventType uint8, jobID, stepID uint32, extra uint32) {
	idx := atomic.AddUint64(&r.head, 1) - 1
	slot := idx & r.mask
	r.events[slot] = wire.FlightEvent{
		TimestampUS:     r.clk.NowUS(),
		TimestampCycles: r.clk.NowCycles(),
		Type:            eventType,
		CPUID:           0,
		JobID:           jobID,
		StepID:          stepID,
		Extra:           extra,
	}
}

// BeginSpan logs startType and reserves a slot in the active-span
// table, returning a handle for the matching EndSpan. If the table is
// full it logs EventRecorderSpanDropped and returns InvalidHandle.
func (r *Recorder) BeginSpan(startType uint8, jobID, stepID uint32) int {
	r.Log(startType, jobID, stepID, 0)

	r.spanMu.Lock()
	defer r.spanMu.Unlock()
	for i := range r.spansUse {
		if !r.spansUse[i] {
			r.spansUse[i] = true
			r.spans[i] = span{
				startCycles: r.clk.NowCycles(),
				startType:   startType,
				jobID:       jobID,
				stepID:      stepID,
			}
			return i + 1
		}
	}
	r.Log(wire.EventRecorderSpanDropped, jobID, stepID, 0)
	return InvalidHandle
}

// EndSpan computes duration_µs from the stored start cycle, logs
// endType with extra set to that duration, and frees the slot. A call
// with InvalidHandle is a no-op.
func (r *Recorder) EndSpan(handle int, endType uint8) {
	if handle == InvalidHandle {
		return
	}
	idx := handle - 1
	if idx < 0 || idx >= len(r.spans) {
		return
	}

	r.spanMu.Lock()
	if !r.spansUse[idx] {
		r.spanMu.Unlock()
		return
	}
	s := r.spans[idx]
	r.spansUse[idx] = false
	r.spanMu.Unlock()

	endCycles := r.clk.NowCycles()
	durationUS := r.clk.CyclesToUS(endCycles - s.startCycles)
	r.Log(endType, s.jobID, s.stepID, uint32(durationUS))
}

// snapshot returns the valid events oldest-to-newest over the last
// min(head, capacity) writes.
func (r *Recorder) snapshot() []wire.FlightEvent {
	head := atomic.LoadUint64(&r.head)
	n := uint64(len(r.events))
	if head < n {
		out := make([]wire.FlightEvent, head)
		copy(out, r.events[:head])
		return out
	}
	out := make([]wire.FlightEvent, n)
	start := head & r.mask
	copy(out, r.events[start:])
	copy(out[n-start:], r.events[:start])
	return out
}

// LastDuration scans events newest-to-oldest and returns the Extra of
// the most recent EventStepEnd matching both ids, or 0 if none.
func (r *Recorder) LastDuration(jobID, stepID uint32) uint32 {
	events := r.snapshot()
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.Type == wire.EventStepEnd && e.JobID == jobID && e.StepID == stepID {
			return e.Extra
		}
	}
	return 0
}

// JobStats is the aggregate returned by JobStats.
type JobStats struct {
	TotalStepUS  uint64
	Violations   int
	WallSpanUS   uint64
}

// JobStats sums EventStepEnd extras, counts violation-class events,
// and computes the wall span restricted to events for jobID.
func (r *Recorder) JobStats(jobID uint32) JobStats {
	events := r.snapshot()
	var stats JobStats
	var minTS, maxTS uint64
	seen := false
	for _, e := range events {
		if e.JobID != jobID {
			continue
		}
		if e.Type == wire.EventStepEnd {
			stats.TotalStepUS += uint64(e.Extra)
		}
		if isViolation(e.Type) {
			stats.Violations++
		}
		if !seen || e.TimestampUS < minTS {
			minTS = e.TimestampUS
		}
		if !seen || e.TimestampUS > maxTS {
			maxTS = e.TimestampUS
		}
		seen = true
	}
	if seen {
		stats.WallSpanUS = maxTS - minTS
	}
	return stats
}

func isViolation(t uint8) bool {
	switch t {
	case wire.EventContractBudgetWarn, wire.EventContractBudgetExceed,
		wire.EventContractSafeMode, wire.EventMemAllocFail,
		wire.EventMemLocalityMiss, wire.EventJobReject,
		wire.EventRecorderSpanDropped:
		return true
	default:
		return false
	}
}

// Events returns a snapshot of all currently retained events,
// oldest-to-newest, for diagnostics and tests.
func (r *Recorder) Events() []wire.FlightEvent {
	return r.snapshot()
}
