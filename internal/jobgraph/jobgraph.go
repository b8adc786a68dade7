// Package jobgraph implements the bounded-capacity DAG of typed steps
// with tensor metadata and memory-peak analysis (spec.md §4.4).
package jobgraph

import (
	"fmt"

	"github.com/zen-systems/zenedge/internal/constants"
)

// StepType enumerates the kinds of work a Step performs (spec.md §3).
type StepType int

const (
	StepCompute StepType = iota
	StepCollective
	StepIO
	StepControl
)

// DType enumerates tensor element types with their fixed byte size
// (spec.md §3).
type DType int

const (
	FP32 DType = iota
	FP16
	BF16
	Int8
	Int32
)

// ElemSize returns the fixed per-element byte size for d.
func ElemSize(d DType) int {
	switch d {
	case FP32, Int32:
		return 4
	case FP16, BF16:
		return 2
	case Int8:
		return 1
	default:
		return 0
	}
}

// Tensor is a typed element array registered in a Graph's tensor
// table (spec.md §3).
type Tensor struct {
	ID           int
	Dtype        DType
	NumElements  int
	SizeBytes    int
	Pinned       bool
	NodeAffinity int
}

// Step is one node of the job DAG (spec.md §3).
type Step struct {
	ID      int
	Type    StepType
	Deps    []int
	Inputs  []int
	Outputs []int

	WorkingSetKB int
	PeakMemoryKB int
	Ready        bool
	Completed    bool
}

// Graph is a bounded-capacity DAG: at most constants.MaxSteps steps
// and constants.MaxTensors tensors, each step bounded by
// constants.MaxDeps/MaxInputs/MaxOutputs (spec.md §4.4).
type Graph struct {
	JobID uint32

	steps       []*Step
	stepIndex   map[int]int
	tensors     []*Tensor
	tensorIndex map[int]int

	TotalMemoryKB  int
	PeakMemoryKB   int
	PinnedMemoryKB int
}

// New creates an empty job graph for jobID.
func New(jobID uint32) *Graph {
	return &Graph{
		JobID:       jobID,
		stepIndex:   make(map[int]int),
		tensorIndex: make(map[int]int),
	}
}

// AddStep registers a new step. It fails once capacity is exhausted.
// A step with no deps yet is immediately ready.
func (g *Graph) AddStep(id int, stepType StepType) error {
	if len(g.steps) >= constants.MaxSteps {
		return fmt.Errorf("jobgraph: step capacity (%d) exhausted", constants.MaxSteps)
	}
	if _, exists := g.stepIndex[id]; exists {
		return fmt.Errorf("jobgraph: step %d already exists", id)
	}
	s := &Step{ID: id, Type: stepType, Ready: true}
	g.stepIndex[id] = len(g.steps)
	g.steps = append(g.steps, s)
	return nil
}

// AddDep records that step depends on dependsOn. Both must already
// exist; the dependent step's Ready flag is cleared. Rejected if
// dependsOn already (transitively) depends on step, since accepting it
// would break the dependency relation's acyclic invariant (spec.md:49)
// and leave the affected steps permanently unready.
func (g *Graph) AddDep(step, dependsOn int) error {
	s, ok := g.step(step)
	if !ok {
		return fmt.Errorf("jobgraph: unknown step %d", step)
	}
	if _, ok := g.step(dependsOn); !ok {
		return fmt.Errorf("jobgraph: unknown dependency step %d", dependsOn)
	}
	if len(s.Deps) >= constants.MaxDeps {
		return fmt.Errorf("jobgraph: step %d dep capacity (%d) exhausted", step, constants.MaxDeps)
	}
	if g.reaches(dependsOn, step) {
		return fmt.Errorf("jobgraph: dep %d -> %d would introduce a cycle", step, dependsOn)
	}
	s.Deps = append(s.Deps, dependsOn)
	s.Ready = false
	return nil
}

// reaches reports whether to is reachable from from by walking Deps
// edges (from depends on ..., transitively, on to). Used to reject a
// new dep before it is added: adding step -> dependsOn is only safe if
// dependsOn cannot already reach step.
func (g *Graph) reaches(from, to int) bool {
	if from == to {
		return true
	}
	visited := make(map[int]bool)
	var dfs func(id int) bool
	dfs = func(id int) bool {
		if visited[id] {
			return false
		}
		visited[id] = true
		s, ok := g.step(id)
		if !ok {
			return false
		}
		for _, dep := range s.Deps {
			if dep == to || dfs(dep) {
				return true
			}
		}
		return false
	}
	return dfs(from)
}

// AddTensor registers a tensor descriptor. Fails on a duplicate id or
// exhausted tensor capacity.
func (g *Graph) AddTensor(id int, dtype DType, nelem int, pinned bool, nodeAffinity int) error {
	if len(g.tensors) >= constants.MaxTensors {
		return fmt.Errorf("jobgraph: tensor capacity (%d) exhausted", constants.MaxTensors)
	}
	if _, exists := g.tensorIndex[id]; exists {
		return fmt.Errorf("jobgraph: tensor %d already exists", id)
	}
	t := &Tensor{
		ID:           id,
		Dtype:        dtype,
		NumElements:  nelem,
		SizeBytes:    nelem * ElemSize(dtype),
		Pinned:       pinned,
		NodeAffinity: nodeAffinity,
	}
	g.tensorIndex[id] = len(g.tensors)
	g.tensors = append(g.tensors, t)
	return nil
}

// StepAddInput attaches tensor as an input of step; both ids must
// exist.
func (g *Graph) StepAddInput(step, tensor int) error {
	s, ok := g.step(step)
	if !ok {
		return fmt.Errorf("jobgraph: unknown step %d", step)
	}
	if _, ok := g.tensor(tensor); !ok {
		return fmt.Errorf("jobgraph: unknown tensor %d", tensor)
	}
	if len(s.Inputs) >= constants.MaxInputs {
		return fmt.Errorf("jobgraph: step %d input capacity (%d) exhausted", step, constants.MaxInputs)
	}
	s.Inputs = append(s.Inputs, tensor)
	return nil
}

// StepAddOutput attaches tensor as an output of step; both ids must
// exist.
func (g *Graph) StepAddOutput(step, tensor int) error {
	s, ok := g.step(step)
	if !ok {
		return fmt.Errorf("jobgraph: unknown step %d", step)
	}
	if _, ok := g.tensor(tensor); !ok {
		return fmt.Errorf("jobgraph: unknown tensor %d", tensor)
	}
	if len(s.Outputs) >= constants.MaxOutputs {
		return fmt.Errorf("jobgraph: step %d output capacity (%d) exhausted", step, constants.MaxOutputs)
	}
	s.Outputs = append(s.Outputs, tensor)
	return nil
}

// MarkCompleted marks step completed, then re-evaluates readiness of
// every other incomplete step whose deps are all now completed.
// O(steps·deps), acceptable at this scale (spec.md §4.4).
func (g *Graph) MarkCompleted(step int) error {
	s, ok := g.step(step)
	if !ok {
		return fmt.Errorf("jobgraph: unknown step %d", step)
	}
	s.Completed = true

	for _, other := range g.steps {
		if other.Completed {
			continue
		}
		allDone := true
		for _, dep := range other.Deps {
			ds, _ := g.step(dep)
			if ds == nil || !ds.Completed {
				allDone = false
				break
			}
		}
		if allDone {
			other.Ready = true
		}
	}
	return nil
}

// NextReady returns the first step that is ready and not completed, in
// insertion order, or (0, false) if none.
func (g *Graph) NextReady() (int, bool) {
	for _, s := range g.steps {
		if s.Ready && !s.Completed {
			return s.ID, true
		}
	}
	return 0, false
}

// ComputeMemory computes per-step working set / peak and job-level
// peak/total/pinned memory, rounding every step's byte sum up to KiB
// (spec.md §4.4).
func (g *Graph) ComputeMemory() {
	var jobPeak int
	for _, s := range g.steps {
		bytes := 0
		for _, tid := range s.Inputs {
			if t, ok := g.tensor(tid); ok {
				bytes += t.SizeBytes
			}
		}
		for _, tid := range s.Outputs {
			if t, ok := g.tensor(tid); ok {
				bytes += t.SizeBytes
			}
		}
		kb := roundUpKB(bytes)
		s.WorkingSetKB = kb
		s.PeakMemoryKB = kb
		if kb > jobPeak {
			jobPeak = kb
		}
	}

	var totalBytes, pinnedBytes int
	for _, t := range g.tensors {
		totalBytes += t.SizeBytes
		if t.Pinned {
			pinnedBytes += t.SizeBytes
		}
	}

	g.PeakMemoryKB = jobPeak
	g.TotalMemoryKB = roundUpKB(totalBytes)
	g.PinnedMemoryKB = roundUpKB(pinnedBytes)
}

func roundUpKB(bytes int) int {
	return (bytes + 1023) / 1024
}

// Step returns the step registered under id, if any.
func (g *Graph) Step(id int) (*Step, bool) {
	return g.step(id)
}

// Tensor returns the tensor registered under id, if any.
func (g *Graph) Tensor(id int) (*Tensor, bool) {
	return g.tensor(id)
}

// Steps returns all steps in insertion order.
func (g *Graph) Steps() []*Step {
	return g.steps
}

func (g *Graph) step(id int) (*Step, bool) {
	idx, ok := g.stepIndex[id]
	if !ok {
		return nil, false
	}
	return g.steps[idx], true
}

func (g *Graph) tensor(id int) (*Tensor, bool) {
	idx, ok := g.tensorIndex[id]
	if !ok {
		return nil, false
	}
	return g.tensors[idx], true
}
