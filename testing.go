package zenedge

import (
	"github.com/zen-systems/zenedge/internal/accel"
	"github.com/zen-systems/zenedge/internal/clock"
	"github.com/zen-systems/zenedge/internal/ipc"
	"github.com/zen-systems/zenedge/internal/platform"
)

// NewSimPlatform constructs a deterministic Sim platform sized for a
// Kernel under test: sharedMemSize bytes of shared memory (rounded up
// to MinSharedRegionSize if smaller) and a single available memory
// region availableBytes long. Useful for unit tests of code built on
// top of this package that need a Kernel without a real hosted
// environment.
func NewSimPlatform(sharedMemSize int, availableBytes uint64) *platform.Sim {
	if sharedMemSize < MinSharedRegionSize {
		sharedMemSize = MinSharedRegionSize
	}
	return platform.NewSim(
		platform.WithSharedMemSize(sharedMemSize),
		platform.WithMemMap(NewSyntheticMemoryMap(availableBytes)),
	)
}

// NewSyntheticMemoryMap builds a single-region bootloader memory map
// covering availableBytes starting at address 0, for feeding a PMM
// under test without a real bootloader handoff.
func NewSyntheticMemoryMap(availableBytes uint64) []platform.MemRegion {
	return []platform.MemRegion{
		{Base: 0, Length: availableBytes, Type: platform.RegionAvailable},
	}
}

// NewMockAccelerator attaches an in-process mock of the external
// accelerator daemon to a Kernel's IPC peer side, so the scheduler's
// offload dispatch path can be exercised without a second process.
// Callers own Start/Stop.
func NewMockAccelerator(k *Kernel) *accel.MockAccelerator {
	peer := ipc.OpenPeer(k.Platform.SharedMemBase(), k.Platform)
	return accel.New(peer, k.Platform, k.Clock)
}

// NewTestClock returns a Clock calibrated against plat, for tests that
// need one without constructing a full Kernel.
func NewTestClock(plat platform.Platform) *clock.Clock {
	return clock.New(plat)
}
