package zenedge

import (
	"github.com/zen-systems/zenedge/internal/clock"
	"github.com/zen-systems/zenedge/internal/contract"
	"github.com/zen-systems/zenedge/internal/heap"
	"github.com/zen-systems/zenedge/internal/ipc"
	"github.com/zen-systems/zenedge/internal/jobgraph"
	"github.com/zen-systems/zenedge/internal/logging"
	"github.com/zen-systems/zenedge/internal/platform"
	"github.com/zen-systems/zenedge/internal/pmm"
	"github.com/zen-systems/zenedge/internal/recorder"
	"github.com/zen-systems/zenedge/internal/scheduler"
)

// Kernel is the explicit context every ZENEDGE operation runs against
// (spec.md §9 Design Notes: "model as an explicit kernel context
// struct passed to every operation, instantiated once at init; avoid
// hidden singletons"). Tests instantiate independent Kernels in
// parallel over independent Sim platforms.
type Kernel struct {
	Platform platform.Platform
	Clock    *clock.Clock
	Recorder *recorder.Recorder
	Memory   *pmm.Manager
	Contract *contract.Engine
	IPC      *ipc.Transport
	Heap     *heap.Heap
	Sched    *scheduler.Scheduler

	Metrics  *Metrics
	Observer Observer
	Log      *logging.Logger
}

// Option configures a Kernel at construction time.
type Option func(*kernelConfig)

type kernelConfig struct {
	recorderCapacity int
	observer         Observer
	logger           *logging.Logger
}

// WithRecorderCapacity overrides the flight recorder's event-ring
// capacity (rounded up to a power of two).
func WithRecorderCapacity(n int) Option {
	return func(c *kernelConfig) { c.recorderCapacity = n }
}

// WithObserver installs a metrics Observer other than the Kernel's own
// MetricsObserver (e.g. NoOpObserver in a throwaway test Kernel).
func WithObserver(o Observer) Option {
	return func(c *kernelConfig) { c.observer = o }
}

// WithLogger installs a logger other than logging.Default().
func WithLogger(l *logging.Logger) Option {
	return func(c *kernelConfig) { c.logger = l }
}

// NewKernel wires a Kernel's components against plat: a Clock
// calibrated against it, a Recorder driven by that Clock, a PMM parsed
// from plat's memory map, a Contract engine over the PMM, an IPC
// transport over plat's shared-memory region, and a Scheduler tying
// all of the above together (spec.md §4's component list, wired in
// the order each depends on the last).
func NewKernel(plat platform.Platform, opts ...Option) *Kernel {
	cfg := kernelConfig{recorderCapacity: DefaultRecorderCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	clk := clock.New(plat)
	rec := recorder.New(clk, cfg.recorderCapacity)
	mem := pmm.New(rec, plat.MemMap())
	ctr := contract.NewEngine(mem, rec)
	trans := ipc.NewTransport(plat.SharedMemBase(), plat)
	blobHeap := heap.New(plat.SharedMemBase())
	sched := scheduler.New(clk, plat, rec, ctr, trans)

	metrics := NewMetrics()
	observer := cfg.observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	logger := cfg.logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Kernel{
		Platform: plat,
		Clock:    clk,
		Recorder: rec,
		Memory:   mem,
		Contract: ctr,
		IPC:      trans,
		Heap:     blobHeap,
		Sched:    sched,
		Metrics:  metrics,
		Observer: observer,
		Log:      logger,
	}
}

// Admit runs the contract engine's admission check for job against c,
// applying the contract on acceptance and reporting a rejection to the
// Kernel's Observer as an allocation failure.
func (k *Kernel) Admit(c *contract.Contract, job *jobgraph.Graph) contract.AdmitResult {
	job.ComputeMemory()
	result := k.Contract.Admit(c, job)
	if result != contract.AdmitOK {
		k.Observer.ObserveAllocFailure()
		return result
	}
	k.Contract.Apply(c)
	return result
}

// RunJob delegates to the scheduler and forwards the run's outcome
// into the Kernel's Observer, keeping internal/scheduler free of any
// dependency on the root package's metrics types.
func (k *Kernel) RunJob(job *jobgraph.Graph, c *contract.Contract) scheduler.RunResult {
	k.Observer.ObserveJobSubmit()

	result := k.Sched.RunJob(job, c)

	for stepID, outcome := range result.Outcomes {
		step, ok := job.Step(stepID)
		if !ok {
			continue
		}
		duration := uint64(k.Recorder.LastDuration(c.JobID, uint32(step.ID)))
		k.Observer.ObserveStep(duration, outcome == scheduler.OutcomeTimeout)
	}
	if c.CPUViolations > 0 {
		k.Observer.ObserveViolation(true)
	}
	if c.MemViolations > 0 {
		k.Observer.ObserveViolation(false)
	}

	k.Observer.ObserveJobComplete(result.Aborted)
	return result
}

// Stats returns the flight recorder's aggregated stats for jobID.
func (k *Kernel) Stats(jobID uint32) recorder.JobStats {
	return k.Recorder.JobStats(jobID)
}
