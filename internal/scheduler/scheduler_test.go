package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zen-systems/zenedge/internal/accel"
	"github.com/zen-systems/zenedge/internal/clock"
	"github.com/zen-systems/zenedge/internal/constants"
	"github.com/zen-systems/zenedge/internal/contract"
	"github.com/zen-systems/zenedge/internal/ipc"
	"github.com/zen-systems/zenedge/internal/jobgraph"
	"github.com/zen-systems/zenedge/internal/platform"
	"github.com/zen-systems/zenedge/internal/pmm"
	"github.com/zen-systems/zenedge/internal/recorder"
	"github.com/zen-systems/zenedge/internal/wire"
)

type harness struct {
	sim   *platform.Sim
	clk   *clock.Clock
	rec   *recorder.Recorder
	mem   *pmm.Manager
	ctr   *contract.Engine
	trans *ipc.Transport
	peer  *ipc.Peer
	acc   *accel.MockAccelerator
	sched *Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sim := platform.NewSim(
		platform.WithSharedMemSize(constants.MinSharedRegionSize),
		platform.WithMemMap([]platform.MemRegion{{Base: 0, Length: 128 << 20, Type: platform.RegionAvailable}}),
	)
	clk := clock.New(sim)
	rec := recorder.New(clk, 256)
	mem := pmm.New(rec, sim.MemMap())
	ctr := contract.NewEngine(mem, rec)
	trans := ipc.NewTransport(sim.SharedMemBase(), sim)
	peer := ipc.OpenPeer(sim.SharedMemBase(), sim)
	acc := accel.New(peer, sim, clk)
	sched := New(clk, sim, rec, ctr, trans)
	return &harness{sim: sim, clk: clk, rec: rec, mem: mem, ctr: ctr, trans: trans, peer: peer, acc: acc, sched: sched}
}

func buildOneComputeStepJob(jobID uint32) *jobgraph.Graph {
	job := jobgraph.New(jobID)
	_ = job.AddStep(1, jobgraph.StepCompute)
	job.ComputeMemory()
	return job
}

// S6: job with one COMPUTE step, contract cpu_budget=1000µs, offload
// replies after 900µs. Expect STEP_START, STEP_END(900 <= extra < 1000),
// CONTRACT_BUDGET_WARN (900 > 0.8·1000), and no BUDGET_EXCEED.
func TestS6SchedulerBudgetWarn(t *testing.T) {
	h := newHarness(t)
	h.acc.ReplyDelayUS = 900
	h.acc.Start()
	defer h.acc.Stop()

	c := &contract.Contract{JobID: 7, CPUBudgetUS: 1000, MemoryBudgetKB: 1 << 20, Priority: contract.PriorityNormal}
	h.ctr.Apply(c)

	job := buildOneComputeStepJob(7)
	result := h.sched.RunJob(job, c)

	require.Equal(t, 1, result.StepsCompleted)
	require.False(t, result.Aborted)
	require.Equal(t, OutcomeCompleted, result.Outcomes[1])

	events := h.rec.Events()
	var sawStart, sawEnd, sawWarn, sawExceed bool
	var endExtra uint32
	for _, e := range events {
		if e.JobID != 7 {
			continue
		}
		switch e.Type {
		case wire.EventStepStart:
			sawStart = true
		case wire.EventStepEnd:
			sawEnd = true
			endExtra = e.Extra
		case wire.EventContractBudgetWarn:
			sawWarn = true
		case wire.EventContractBudgetExceed:
			sawExceed = true
		}
	}

	require.True(t, sawStart)
	require.True(t, sawEnd)
	require.GreaterOrEqual(t, endExtra, uint32(900))
	require.Less(t, endExtra, uint32(1000))
	require.True(t, sawWarn)
	require.False(t, sawExceed)
}

// A step finishing well inside budget should warn neither WARN nor
// EXCEED.
func TestSchedulerNoWarnWellInsideBudget(t *testing.T) {
	h := newHarness(t)
	h.acc.ReplyDelayUS = 10
	h.acc.Start()
	defer h.acc.Stop()

	c := &contract.Contract{JobID: 8, CPUBudgetUS: 1000, MemoryBudgetKB: 1 << 20, Priority: contract.PriorityNormal}
	h.ctr.Apply(c)

	job := buildOneComputeStepJob(8)
	h.sched.RunJob(job, c)

	for _, e := range h.rec.Events() {
		if e.JobID != 8 {
			continue
		}
		require.NotEqual(t, wire.EventContractBudgetWarn, e.Type)
		require.NotEqual(t, wire.EventContractBudgetExceed, e.Type)
	}
}

// A reply that never arrives should time out rather than hang forever.
func TestSchedulerStepTimeout(t *testing.T) {
	h := newHarness(t)
	// No accelerator started: the command is never answered.
	h.sched.SpinBudget = 0
	h.sched.PollInterval = 1
	h.sched.PollDeadline = 0

	c := &contract.Contract{JobID: 9, CPUBudgetUS: 1000, MemoryBudgetKB: 1 << 20, Priority: contract.PriorityNormal}
	h.ctr.Apply(c)

	job := buildOneComputeStepJob(9)
	result := h.sched.RunJob(job, c)

	require.Equal(t, OutcomeTimeout, result.Outcomes[1])

	sawTimeout := false
	for _, e := range h.rec.Events() {
		if e.JobID == 9 && e.Type == wire.EventStepTimeout {
			sawTimeout = true
		}
	}
	require.True(t, sawTimeout)
}

// A job reaching SAFE_MODE mid-run halts before its next ready step.
func TestSchedulerAbortsOnSafeMode(t *testing.T) {
	h := newHarness(t)

	c := &contract.Contract{JobID: 10, CPUBudgetUS: 1000, MemoryBudgetKB: 1 << 20, Priority: contract.PriorityNormal}
	h.ctr.Apply(c)
	c.State = contract.StateSafeMode

	job := buildOneComputeStepJob(10)
	result := h.sched.RunJob(job, c)

	require.True(t, result.Aborted)
	require.Equal(t, 0, result.StepsCompleted)
}
