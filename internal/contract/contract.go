// Package contract implements the contract engine (spec.md §4.5): a
// per-job CPU/memory budget state machine (OK→WARNED→SAFE_MODE) tied
// to the job graph and the physical memory manager, plus admission
// control.
package contract

import (
	"sync"

	"github.com/zen-systems/zenedge/internal/constants"
	"github.com/zen-systems/zenedge/internal/jobgraph"
	"github.com/zen-systems/zenedge/internal/pmm"
	"github.com/zen-systems/zenedge/internal/recorder"
	"github.com/zen-systems/zenedge/internal/wire"
)

// State is the contract's monotone lifecycle state (spec.md §3:
// "transitions are monotone; no return to OK within one job").
type State int

const (
	StateOK State = iota
	StateWarned
	StateSafeMode
)

// Priority orders a contract's preferred NUMA placement and (in a
// future scheduler policy) dispatch order (spec.md §3).
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityRealtime
)

// AdmitResult is the outcome of Admit (spec.md §4.5). REJECT_CPU and
// REJECT_PRIORITY are part of the documented result vocabulary but no
// admission rule in spec.md §4.5 produces them; they are retained here
// so a future rule has a slot without changing the result type.
type AdmitResult int

const (
	AdmitOK AdmitResult = iota
	AdmitRejectMemory
	AdmitRejectCPU
	AdmitRejectPriority
	AdmitRejectNoResources
)

// Contract is a job's resource budget and runtime counters.
type Contract struct {
	JobID          uint32
	CPUBudgetUS    uint64
	MemoryBudgetKB int
	Priority       Priority
	PreferredNode  int

	CPUUsedUS    uint64
	MemUsedKB    int
	CPUViolations int
	MemViolations int
	State        State
}

// Engine ties contracts to a PMM and a flight recorder, keeping a
// small fixed-size registry keyed by job id.
type Engine struct {
	mu        sync.Mutex
	mem       *pmm.Manager
	rec       *recorder.Recorder
	contracts map[uint32]*Contract
}

// NewEngine constructs a contract engine against mem and rec.
func NewEngine(mem *pmm.Manager, rec *recorder.Recorder) *Engine {
	return &Engine{
		mem:       mem,
		rec:       rec,
		contracts: make(map[uint32]*Contract),
	}
}

// Apply zeroes runtime counters, sets state to OK, chooses
// PreferredNode (REALTIME → node 0, otherwise node 1), registers c
// keyed by JobID, and logs CONTRACT_APPLY with extra=cpu_budget_µs.
func (e *Engine) Apply(c *Contract) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c.CPUUsedUS = 0
	c.MemUsedKB = 0
	c.CPUViolations = 0
	c.MemViolations = 0
	c.State = StateOK
	if c.Priority == PriorityRealtime {
		c.PreferredNode = constants.NodeLocal
	} else {
		c.PreferredNode = constants.NodeRemote
	}
	e.contracts[c.JobID] = c
	e.rec.Log(wire.EventContractApply, c.JobID, 0, uint32(c.CPUBudgetUS))
}

// Get returns the registered contract for jobID, if any.
func (e *Engine) Get(jobID uint32) (*Contract, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contracts[jobID]
	return c, ok
}

// ChargeCPU adds us to c's cpu_used_µs; if that overshoots the budget
// it increments cpu_violations, logs CONTRACT_BUDGET_EXCEED, runs the
// CPU violation transition, and returns true.
func (e *Engine) ChargeCPU(c *Contract, us uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	c.CPUUsedUS += us
	if c.CPUUsedUS <= c.CPUBudgetUS {
		return false
	}
	c.CPUViolations++
	e.rec.Log(wire.EventContractBudgetExceed, c.JobID, 0, uint32(c.CPUUsedUS))
	e.transitionCPUViolation(c)
	return true
}

// ChargeMemory is ChargeCPU's symmetric memory counterpart.
func (e *Engine) ChargeMemory(c *Contract, kb int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	c.MemUsedKB += kb
	if c.MemUsedKB <= c.MemoryBudgetKB {
		return false
	}
	c.MemViolations++
	e.rec.Log(wire.EventContractBudgetExceed, c.JobID, 0, uint32(c.MemUsedKB))
	e.transitionMemViolation(c)
	return true
}

// transitionCPUViolation applies spec.md §4.5's CPU transition rule:
// OK → WARNED on first violation; WARNED → SAFE_MODE once
// cpu_violations reaches the configured threshold.
func (e *Engine) transitionCPUViolation(c *Contract) {
	switch c.State {
	case StateOK:
		e.setState(c, StateWarned)
	case StateWarned:
		if c.CPUViolations >= constants.CPUViolationsToSafeMode {
			e.setState(c, StateSafeMode)
		}
	}
}

// transitionMemViolation applies the memory transition rule.
func (e *Engine) transitionMemViolation(c *Contract) {
	switch c.State {
	case StateOK:
		e.setState(c, StateWarned)
	case StateWarned:
		if c.MemViolations >= constants.MemViolationsToSafeMode {
			e.setState(c, StateSafeMode)
		}
	}
}

// setState is a no-op if unchanged; otherwise it logs
// CONTRACT_STATE_CHANGE, then (if entering SAFE_MODE)
// CONTRACT_SAFE_MODE.
func (e *Engine) setState(c *Contract, s State) {
	if c.State == s {
		return
	}
	c.State = s
	e.rec.Log(wire.EventContractStateChange, c.JobID, 0, uint32(s))
	if s == StateSafeMode {
		e.rec.Log(wire.EventContractSafeMode, c.JobID, 0, 0)
	}
}

// AllocPage denies with MEM_ALLOC_FAIL if c is in SAFE_MODE or the
// pre-charge would overshoot the budget (running the memory-violation
// transition in that case); otherwise it asks the PMM with c's
// preferred node, credits 4 KiB on success, and logs MEM_ALLOC.
func (e *Engine) AllocPage(c *Contract) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c.State == StateSafeMode {
		e.rec.Log(wire.EventMemAllocFail, c.JobID, 0, 0)
		return 0
	}

	const pageKB = constants.PageSize / 1024
	if c.MemUsedKB+pageKB > c.MemoryBudgetKB {
		c.MemViolations++
		e.rec.Log(wire.EventContractBudgetExceed, c.JobID, 0, uint32(c.MemUsedKB+pageKB))
		e.transitionMemViolation(c)
		e.rec.Log(wire.EventMemAllocFail, c.JobID, 0, 0)
		return 0
	}

	addr := e.mem.AllocPage(c.PreferredNode)
	if addr == 0 {
		e.rec.Log(wire.EventMemAllocFail, c.JobID, 0, 0)
		return 0
	}
	c.MemUsedKB += pageKB
	e.rec.Log(wire.EventMemAlloc, c.JobID, 0, 1)
	return addr
}

// FreePage credits 4 KiB back to c (never below 0), frees addr via the
// PMM, and logs MEM_FREE.
func (e *Engine) FreePage(c *Contract, addr uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const pageKB = constants.PageSize / 1024
	c.MemUsedKB -= pageKB
	if c.MemUsedKB < 0 {
		c.MemUsedKB = 0
	}
	e.mem.FreePage(addr)
	e.rec.Log(wire.EventMemFree, c.JobID, 0, 1)
}

// CanContinue reports whether c's job may still make progress;
// SAFE_MODE is terminal for new allocation but not for reads.
func (e *Engine) CanContinue(c *Contract) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return c.State != StateSafeMode
}

// EstimateStepCPU is the single seam for §4.5 rule 4's per-step-type
// CPU cost estimate (spec.md §9 open question: the COLLECTIVE default
// is a placeholder pending calibration).
func EstimateStepCPU(t jobgraph.StepType) uint64 {
	switch t {
	case jobgraph.StepCompute:
		return constants.EstimateComputeUS
	case jobgraph.StepCollective:
		return constants.EstimateCollectiveUS
	case jobgraph.StepIO:
		return constants.EstimateIOUS
	case jobgraph.StepControl:
		return constants.EstimateControlUS
	default:
		return 0
	}
}

// Admit runs the five-rule admission check of spec.md §4.5 against
// job, which must already have had ComputeMemory run.
func (e *Engine) Admit(c *Contract, job *jobgraph.Graph) AdmitResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if job.PeakMemoryKB > c.MemoryBudgetKB {
		e.rec.Log(wire.EventJobReject, c.JobID, 0, uint32(job.PeakMemoryKB))
		return AdmitRejectMemory
	}
	if job.PinnedMemoryKB > c.MemoryBudgetKB {
		e.rec.Log(wire.EventJobReject, c.JobID, 0, uint32(job.PeakMemoryKB))
		return AdmitRejectMemory
	}
	if job.PeakMemoryKB > c.MemoryBudgetKB-c.MemUsedKB {
		e.rec.Log(wire.EventJobReject, c.JobID, 0, uint32(job.PeakMemoryKB))
		return AdmitRejectNoResources
	}

	var cpuEstimate uint64
	for _, s := range job.Steps() {
		cpuEstimate += EstimateStepCPU(s.Type)
	}
	if cpuEstimate > c.CPUBudgetUS {
		e.rec.Log(wire.EventContractBudgetWarn, c.JobID, 0, uint32(cpuEstimate))
	}

	e.rec.Log(wire.EventJobAdmit, c.JobID, 0, uint32(cpuEstimate))
	return AdmitOK
}
