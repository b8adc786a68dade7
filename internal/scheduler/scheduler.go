// Package scheduler implements the scheduler core (spec.md §4.8): a
// single-threaded driver that executes a job DAG step-by-step,
// dispatching COMPUTE steps to an external accelerator over the IPC
// transport and enforcing the contract's per-step budget.
package scheduler

import (
	"time"

	"github.com/zen-systems/zenedge/internal/clock"
	"github.com/zen-systems/zenedge/internal/constants"
	"github.com/zen-systems/zenedge/internal/contract"
	"github.com/zen-systems/zenedge/internal/ipc"
	"github.com/zen-systems/zenedge/internal/jobgraph"
	"github.com/zen-systems/zenedge/internal/platform"
	"github.com/zen-systems/zenedge/internal/recorder"
	"github.com/zen-systems/zenedge/internal/wire"
)

// StepOutcome is the terminal disposition of one step execution.
type StepOutcome int

const (
	OutcomeCompleted StepOutcome = iota
	OutcomeTimeout
)

// RunResult is what RunJob returns: how far the job got, its final
// flight-recorder stats, and each attempted step's outcome.
type RunResult struct {
	StepsCompleted int
	Stats          recorder.JobStats
	Outcomes       map[int]StepOutcome
	Aborted        bool // true if halted early due to SAFE_MODE
}

// Scheduler drives jobs to completion against a shared recorder,
// contract engine, and IPC transport.
type Scheduler struct {
	clk   *clock.Clock
	plat  platform.Platform
	rec   *recorder.Recorder
	ctr   *contract.Engine
	trans *ipc.Transport

	SpinBudget    time.Duration
	PollInterval  time.Duration
	PollDeadline  time.Duration
	BusyLoopTicks uint64
}

// New constructs a Scheduler with spec.md §4.6's documented adaptive
// polling defaults.
func New(clk *clock.Clock, plat platform.Platform, rec *recorder.Recorder, ctr *contract.Engine, trans *ipc.Transport) *Scheduler {
	return &Scheduler{
		clk:           clk,
		plat:          plat,
		rec:           rec,
		ctr:           ctr,
		trans:         trans,
		SpinBudget:    constants.DefaultSpinBudget,
		PollInterval:  constants.DefaultPollInterval,
		PollDeadline:  constants.DefaultPollDeadline,
		BusyLoopTicks: constants.DefaultBusyLoopTicks,
	}
}

// RunJob executes spec.md §4.8's algorithm: log JOB_SUBMIT, loop over
// ready steps (span → dispatch → span end → budget check → mark
// completed), then log JOB_COMPLETE and return the job's final stats.
// It halts before the next step if the contract has entered SAFE_MODE.
func (s *Scheduler) RunJob(job *jobgraph.Graph, c *contract.Contract) RunResult {
	numSteps := len(job.Steps())
	s.rec.Log(wire.EventJobSubmit, c.JobID, 0, uint32(numSteps))

	result := RunResult{Outcomes: make(map[int]StepOutcome)}

	for {
		stepID, ok := job.NextReady()
		if !ok {
			break
		}
		if !s.ctr.CanContinue(c) {
			result.Aborted = true
			break
		}

		step, _ := job.Step(stepID)
		span := s.rec.BeginSpan(wire.EventStepStart, c.JobID, uint32(stepID))

		outcome := s.executeStep(job, step, c)
		result.Outcomes[stepID] = outcome

		s.rec.EndSpan(span, wire.EventStepEnd)

		duration := uint64(s.rec.LastDuration(c.JobID, uint32(stepID)))
		s.applyPerStepBudget(c, uint32(numSteps), duration)

		job.MarkCompleted(stepID)
		result.StepsCompleted++
	}

	s.rec.Log(wire.EventJobComplete, c.JobID, 0, uint32(result.StepsCompleted))
	result.Stats = s.rec.JobStats(c.JobID)
	return result
}

// executeStep dispatches a non-COMPUTE step as a bounded busy loop, or
// a COMPUTE step through the IPC transport with adaptive polling for
// the response.
func (s *Scheduler) executeStep(job *jobgraph.Graph, step *jobgraph.Step, c *contract.Contract) StepOutcome {
	if step.Type != jobgraph.StepCompute {
		s.plat.BusyWaitTicks(s.BusyLoopTicks)
		return OutcomeCompleted
	}

	var payloadID uint32
	if len(step.Inputs) > 0 {
		payloadID = uint32(step.Inputs[0])
	}

	sendTS := s.clk.NowUS()
	s.rec.Log(wire.EventOffloadDispatch, c.JobID, uint32(step.ID), payloadID)
	s.trans.PushCommand(&wire.CommandPacket{
		Cmd:         wire.CmdRunModel,
		PayloadID:   payloadID,
		TimestampUS: sendTS,
	})

	var resp wire.ResponsePacket
	got := WaitUntil(s.clk, s.plat, func() bool {
		r, ok := s.trans.PopResponse()
		if ok {
			resp = r
		}
		return ok
	}, s.SpinBudget, s.PollInterval, s.PollDeadline)

	if !got {
		s.rec.Log(wire.EventStepTimeout, c.JobID, uint32(step.ID), 0)
		return OutcomeTimeout
	}

	s.rec.Log(wire.EventOffloadComplete, c.JobID, uint32(step.ID), uint32(resp.Result))
	return OutcomeCompleted
}

// applyPerStepBudget implements §4.8 step 2d: compare the step's
// measured duration against the job's per-step share of the CPU
// budget, logging BUDGET_EXCEED or BUDGET_WARN, and separately charge
// the contract engine's cumulative counter.
func (s *Scheduler) applyPerStepBudget(c *contract.Contract, numSteps uint32, duration uint64) {
	if numSteps == 0 {
		return
	}
	perStepBudget := c.CPUBudgetUS / uint64(numSteps)

	switch {
	case duration > perStepBudget:
		s.rec.Log(wire.EventContractBudgetExceed, c.JobID, 0, uint32(duration))
	case float64(duration) > constants.WarnThresholdFraction*float64(perStepBudget):
		s.rec.Log(wire.EventContractBudgetWarn, c.JobID, 0, uint32(duration))
	}

	s.ctr.ChargeCPU(c, duration)
}
