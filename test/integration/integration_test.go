//go:build integration

// Package integration exercises the zenedge Kernel against the real
// Linux-hosted platform (internal/platform.Hosted): an anonymous mmap
// shared-memory region and eventfd-driven IRQ delivery, instead of
// the deterministic Sim used by the package-level unit suites.
package integration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zen-systems/zenedge"
	"github.com/zen-systems/zenedge/internal/contract"
	"github.com/zen-systems/zenedge/internal/jobgraph"
	"github.com/zen-systems/zenedge/internal/platform"
)

func newHostedKernel(t *testing.T) (*zenedge.Kernel, func()) {
	t.Helper()
	hosted, err := platform.NewHosted(zenedge.MinSharedRegionSize, zenedge.NewSyntheticMemoryMap(64<<20))
	require.NoError(t, err)
	k := zenedge.NewKernel(hosted)
	return k, func() { hosted.Close() }
}

func TestHostedPlatformRunsJobToCompletion(t *testing.T) {
	k, cleanup := newHostedKernel(t)
	defer cleanup()

	job := jobgraph.New(1)
	require.NoError(t, job.AddStep(1, jobgraph.StepCompute))

	c := &contract.Contract{JobID: 1, CPUBudgetUS: 1_000_000, MemoryBudgetKB: 4096, Priority: contract.PriorityNormal}
	require.Equal(t, contract.AdmitOK, k.Admit(c, job))

	acc := zenedge.NewMockAccelerator(k)
	acc.Start()
	defer acc.Stop()

	result := k.RunJob(job, c)
	require.Equal(t, 1, result.StepsCompleted)
	require.False(t, result.Aborted)
}

func TestHostedPlatformPMMAllocatesAcrossSharedRegion(t *testing.T) {
	k, cleanup := newHostedKernel(t)
	defer cleanup()

	c := &contract.Contract{JobID: 2, CPUBudgetUS: 1_000_000, MemoryBudgetKB: 1 << 20, Priority: contract.PriorityNormal}
	k.Contract.Apply(c)

	addr := k.Contract.AllocPage(c)
	require.NotZero(t, addr)

	k.Contract.FreePage(c, addr)
}
