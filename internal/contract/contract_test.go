package contract

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zen-systems/zenedge/internal/clock"
	"github.com/zen-systems/zenedge/internal/constants"
	"github.com/zen-systems/zenedge/internal/jobgraph"
	"github.com/zen-systems/zenedge/internal/platform"
	"github.com/zen-systems/zenedge/internal/pmm"
	"github.com/zen-systems/zenedge/internal/recorder"
)

func newTestEngine(t *testing.T, usableBytes uint64) (*Engine, *recorder.Recorder) {
	t.Helper()
	plat := platform.NewSim()
	clk := clock.New(plat)
	rec := recorder.New(clk, 256)
	mmap := []platform.MemRegion{{Base: 0, Length: usableBytes, Type: platform.RegionAvailable}}
	mem := pmm.New(rec, mmap)
	return NewEngine(mem, rec), rec
}

func buildS2Job(t *testing.T) *jobgraph.Graph {
	t.Helper()
	g := jobgraph.New(1)
	require.NoError(t, g.AddStep(1, jobgraph.StepCompute))
	require.NoError(t, g.AddStep(2, jobgraph.StepCompute))
	require.NoError(t, g.AddStep(3, jobgraph.StepCollective))
	require.NoError(t, g.AddDep(2, 1))
	require.NoError(t, g.AddDep(3, 2))
	require.NoError(t, g.AddTensor(1, jobgraph.FP32, 1024, true, 0))
	require.NoError(t, g.AddTensor(2, jobgraph.FP16, 2048, false, 0))
	require.NoError(t, g.AddTensor(3, jobgraph.FP32, 1024, false, 0))
	require.NoError(t, g.StepAddInput(1, 1))
	require.NoError(t, g.StepAddOutput(1, 2))
	require.NoError(t, g.StepAddInput(2, 2))
	require.NoError(t, g.StepAddOutput(2, 3))
	require.NoError(t, g.StepAddInput(3, 3))
	g.ComputeMemory()
	return g
}

// S2 (Admission accept).
func TestS2AdmissionAccept(t *testing.T) {
	e, _ := newTestEngine(t, 128<<20)
	job := buildS2Job(t)
	c := &Contract{JobID: 1, CPUBudgetUS: 50000, MemoryBudgetKB: 64}
	e.Apply(c)

	result := e.Admit(c, job)
	require.Equal(t, AdmitOK, result)
}

// S3 (Admission reject).
func TestS3AdmissionRejectMemory(t *testing.T) {
	e, rec := newTestEngine(t, 128<<20)
	job := buildS2Job(t)
	c := &Contract{JobID: 1, CPUBudgetUS: 50000, MemoryBudgetKB: 4}
	e.Apply(c)

	result := e.Admit(c, job)
	require.Equal(t, AdmitRejectMemory, result)

	found := false
	for _, ev := range rec.Events() {
		if ev.Extra == uint32(job.PeakMemoryKB) {
			found = true
		}
	}
	require.True(t, found)
}

// S4 (Safe-mode path).
func TestS4SafeModePath(t *testing.T) {
	e, _ := newTestEngine(t, 128<<20)
	c := &Contract{JobID: 1, CPUBudgetUS: 50000, MemoryBudgetKB: 16, Priority: PriorityRealtime}
	e.Apply(c)
	require.Equal(t, constants.NodeLocal, c.PreferredNode)

	for i := 0; i < 3; i++ {
		addr := e.AllocPage(c)
		require.NotZero(t, addr)
	}
	require.Equal(t, StateOK, c.State)

	// Fourth call succeeds too: pre-check uses mem_used=12, 12+4=16 is
	// not >16, so it allocates and reaches mem_used=16.
	addr := e.AllocPage(c)
	require.NotZero(t, addr)
	require.Equal(t, 16, c.MemUsedKB)

	// Fifth call triggers first violation: 16+4>16, OK->WARNED.
	addr = e.AllocPage(c)
	require.Zero(t, addr)
	require.Equal(t, StateWarned, c.State)

	// Sixth call triggers second violation: WARNED->SAFE_MODE.
	addr = e.AllocPage(c)
	require.Zero(t, addr)
	require.Equal(t, StateSafeMode, c.State)

	// Seventh call: SAFE_MODE denies immediately.
	addr = e.AllocPage(c)
	require.Zero(t, addr)
	require.False(t, e.CanContinue(c))
}

func TestStateTransitionsAreMonotone(t *testing.T) {
	e, _ := newTestEngine(t, 16<<20)
	c := &Contract{JobID: 1, CPUBudgetUS: 10, MemoryBudgetKB: 64}
	e.Apply(c)

	e.ChargeCPU(c, 100)
	require.Equal(t, StateWarned, c.State)
	e.ChargeCPU(c, 1)
	e.ChargeCPU(c, 1)
	require.Equal(t, StateSafeMode, c.State)

	// Further charges never move state back toward OK.
	prev := c.State
	e.ChargeCPU(c, 1)
	require.GreaterOrEqual(t, int(c.State), int(prev))
}

func TestApplyResetsCountersAndChoosesPreferredNode(t *testing.T) {
	e, _ := newTestEngine(t, 16<<20)
	c := &Contract{JobID: 1, CPUBudgetUS: 10, MemoryBudgetKB: 4}
	e.Apply(c)
	e.ChargeCPU(c, 100)
	require.NotEqual(t, StateOK, c.State)

	e.Apply(c)
	require.Equal(t, StateOK, c.State)
	require.Zero(t, c.CPUUsedUS)
	require.Zero(t, c.CPUViolations)
	require.Equal(t, constants.NodeRemote, c.PreferredNode)
}

func TestFreePageNeverGoesNegative(t *testing.T) {
	e, _ := newTestEngine(t, 16<<20)
	c := &Contract{JobID: 1, CPUBudgetUS: 10, MemoryBudgetKB: 64}
	e.Apply(c)
	e.FreePage(c, 0)
	require.Zero(t, c.MemUsedKB)
}
