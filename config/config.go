// Package config loads a YAML job/contract document describing a
// zenedge run: the job graph's steps and tensors, and the contract
// budgets governing it. This is the config layer the teacher's
// DeviceParams/Options pair plays for a ublk device; here it builds a
// *jobgraph.Graph + *contract.Contract pair instead of device
// parameters.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/zenedge/internal/contract"
	"github.com/zen-systems/zenedge/internal/jobgraph"
)

// Document is the top-level YAML shape for a zenedge run.
type Document struct {
	Job      JobSpec      `yaml:"job"`
	Contract ContractSpec `yaml:"contract"`
}

// JobSpec describes a job graph's steps and tensors.
type JobSpec struct {
	ID      uint32       `yaml:"id"`
	Steps   []StepSpec   `yaml:"steps"`
	Tensors []TensorSpec `yaml:"tensors"`
}

// StepSpec is one job-graph step.
type StepSpec struct {
	ID      int    `yaml:"id"`
	Type    string `yaml:"type"` // compute | collective | io | control
	Deps    []int  `yaml:"deps"`
	Inputs  []int  `yaml:"inputs"`
	Outputs []int  `yaml:"outputs"`
}

// TensorSpec is one job-graph tensor.
type TensorSpec struct {
	ID           int    `yaml:"id"`
	Dtype        string `yaml:"dtype"` // fp32 | fp16 | bf16 | int8 | int32
	NumElements  int    `yaml:"num_elements"`
	Pinned       bool   `yaml:"pinned"`
	NodeAffinity int    `yaml:"node_affinity"`
}

// ContractSpec describes the budgets and priority governing a job.
type ContractSpec struct {
	CPUBudgetUS    uint64 `yaml:"cpu_budget_us"`
	MemoryBudgetKB int    `yaml:"memory_budget_kb"`
	Priority       string `yaml:"priority"` // low | normal | high | realtime
}

// Load reads and parses a Document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &doc, nil
}

// Build constructs a *jobgraph.Graph and *contract.Contract from d,
// applying the step/tensor definitions in document order.
func (d *Document) Build() (*jobgraph.Graph, *contract.Contract, error) {
	graph := jobgraph.New(d.Job.ID)

	for _, s := range d.Job.Steps {
		stepType, err := parseStepType(s.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("config: step %d: %w", s.ID, err)
		}
		if err := graph.AddStep(s.ID, stepType); err != nil {
			return nil, nil, fmt.Errorf("config: step %d: %w", s.ID, err)
		}
	}
	for _, s := range d.Job.Steps {
		for _, dep := range s.Deps {
			if err := graph.AddDep(s.ID, dep); err != nil {
				return nil, nil, fmt.Errorf("config: step %d dep %d: %w", s.ID, dep, err)
			}
		}
	}

	for _, ts := range d.Job.Tensors {
		dtype, err := parseDType(ts.Dtype)
		if err != nil {
			return nil, nil, fmt.Errorf("config: tensor %d: %w", ts.ID, err)
		}
		if err := graph.AddTensor(ts.ID, dtype, ts.NumElements, ts.Pinned, ts.NodeAffinity); err != nil {
			return nil, nil, fmt.Errorf("config: tensor %d: %w", ts.ID, err)
		}
	}

	for _, s := range d.Job.Steps {
		for _, in := range s.Inputs {
			if err := graph.StepAddInput(s.ID, in); err != nil {
				return nil, nil, fmt.Errorf("config: step %d input %d: %w", s.ID, in, err)
			}
		}
		for _, out := range s.Outputs {
			if err := graph.StepAddOutput(s.ID, out); err != nil {
				return nil, nil, fmt.Errorf("config: step %d output %d: %w", s.ID, out, err)
			}
		}
	}

	priority, err := parsePriority(d.Contract.Priority)
	if err != nil {
		return nil, nil, fmt.Errorf("config: contract: %w", err)
	}

	c := &contract.Contract{
		JobID:          d.Job.ID,
		CPUBudgetUS:    d.Contract.CPUBudgetUS,
		MemoryBudgetKB: d.Contract.MemoryBudgetKB,
		Priority:       priority,
	}

	return graph, c, nil
}

func parseStepType(s string) (jobgraph.StepType, error) {
	switch s {
	case "compute", "":
		return jobgraph.StepCompute, nil
	case "collective":
		return jobgraph.StepCollective, nil
	case "io":
		return jobgraph.StepIO, nil
	case "control":
		return jobgraph.StepControl, nil
	default:
		return 0, fmt.Errorf("unknown step type %q", s)
	}
}

func parseDType(s string) (jobgraph.DType, error) {
	switch s {
	case "fp32", "":
		return jobgraph.FP32, nil
	case "fp16":
		return jobgraph.FP16, nil
	case "bf16":
		return jobgraph.BF16, nil
	case "int8":
		return jobgraph.Int8, nil
	case "int32":
		return jobgraph.Int32, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", s)
	}
}

func parsePriority(s string) (contract.Priority, error) {
	switch s {
	case "low":
		return contract.PriorityLow, nil
	case "normal", "":
		return contract.PriorityNormal, nil
	case "high":
		return contract.PriorityHigh, nil
	case "realtime":
		return contract.PriorityRealtime, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}
