package recorder

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zen-systems/zenedge/internal/clock"
	"github.com/zen-systems/zenedge/internal/platform"
	"github.com/zen-systems/zenedge/internal/wire"
)

func newTestRecorder(t *testing.T) (*Recorder, *platform.Sim) {
	t.Helper()
	plat := platform.NewSim(platform.WithCyclesPerUS(1000))
	clk := clock.New(plat)
	return New(clk, 8), plat
}

func TestCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	plat := platform.NewSim()
	clk := clock.New(plat)
	r := New(clk, 5)
	require.Equal(t, uint64(7), r.mask)
}

func TestBeginEndSpanComputesDuration(t *testing.T) {
	r, plat := newTestRecorder(t)
	h := r.BeginSpan(wire.EventStepStart, 1, 2)
	require.NotEqual(t, InvalidHandle, h)
	plat.Advance(500)
	r.EndSpan(h, wire.EventStepEnd)

	require.Equal(t, uint32(500), r.LastDuration(1, 2))
}

func TestEndSpanWithInvalidHandleIsNoop(t *testing.T) {
	r, _ := newTestRecorder(t)
	before := len(r.Events())
	r.EndSpan(InvalidHandle, wire.EventStepEnd)
	require.Equal(t, before, len(r.Events()))
}

func TestActiveSpanTableExhaustionDropsAndInvalidates(t *testing.T) {
	r, _ := newTestRecorder(t)
	handles := make([]int, 0)
	for i := 0; i < 32; i++ {
		handles = append(handles, r.BeginSpan(wire.EventStepStart, 1, uint32(i)))
	}
	sawInvalid := false
	for _, h := range handles {
		if h == InvalidHandle {
			sawInvalid = true
		}
	}
	require.True(t, sawInvalid)
}

func TestRingOverwritesOldestOnWrap(t *testing.T) {
	r, _ := newTestRecorder(t)
	for i := 0; i < 100; i++ {
		r.Log(wire.EventStepStart, 1, uint32(i), 0)
	}
	events := r.Events()
	require.Len(t, events, 8)
	require.Equal(t, uint32(99), events[len(events)-1].StepID)
}

func TestJobStatsAggregatesOnlyMatchingJob(t *testing.T) {
	r, plat := newTestRecorder(t)
	h1 := r.BeginSpan(wire.EventStepStart, 1, 1)
	plat.Advance(100)
	r.EndSpan(h1, wire.EventStepEnd)

	h2 := r.BeginSpan(wire.EventStepStart, 2, 1)
	plat.Advance(900)
	r.EndSpan(h2, wire.EventStepEnd)

	stats := r.JobStats(1)
	require.Equal(t, uint64(100), stats.TotalStepUS)
}

func TestLastDurationReturnsZeroWhenNoMatch(t *testing.T) {
	r, _ := newTestRecorder(t)
	require.Equal(t, uint32(0), r.LastDuration(99, 99))
}
