// Package constants collects the compile-time capacities and defaults
// that bound the governed execution substrate.
package constants

import "time"

// Job graph capacities (spec.md §4.4).
const (
	MaxSteps   = 32
	MaxTensors = 64
	MaxDeps    = 4
	MaxInputs  = 4
	MaxOutputs = 2
)

// Page and frame constants (spec.md §4.3).
const (
	PageSize = 4096

	// LowMemoryReserveBytes and KernelImageReserveBytes are reserved by
	// PMM init in addition to whatever the bootloader memory map
	// already marks non-available, before the usable range is split in
	// half at boundary_pfn.
	LowMemoryReserveBytes    = 1 << 20
	KernelImageReserveBytes  = 1 << 20
)

// NUMA node ids (spec.md §3).
const (
	NodeLocal  = 0
	NodeRemote = 1
	NodeAny    = 0xFF
)

// Contract defaults and violation thresholds (spec.md §4.5).
const (
	CPUViolationsToSafeMode = 3
	MemViolationsToSafeMode = 2
	WarnThresholdFraction   = 0.8
)

// Default per-step-type CPU cost estimates used by JOB_ADMIT, in
// microseconds (spec.md §4.5 step 4). STEP_TYPE_COLLECTIVE's 3000µs is
// an explicit placeholder per spec.md §9's open questions.
const (
	EstimateComputeUS    = 1000
	EstimateCollectiveUS = 3000
	EstimateIOUS         = 2000
	EstimateControlUS    = 100
)

// Flight recorder defaults (spec.md §4.2).
const (
	DefaultRecorderCapacity = 256
	MaxActiveSpans          = 16
)

// Shared blob heap (spec.md §4.7).
const (
	HeapBlockSize = 64
)

// Scheduler adaptive-poll defaults (spec.md §4.6, §5).
const (
	DefaultSpinBudget    = 100 * time.Millisecond
	DefaultPollInterval  = 1 * time.Millisecond
	DefaultPollDeadline  = 5 * time.Second
	DefaultBusyLoopTicks = 1 << 12
)

// Shared-memory region layout offsets (spec.md §6, byte-exact).
const (
	CommandRingOffset  = 0x00000
	CommandRingSize    = 32 * 1024
	ResponseRingOffset = 0x08000
	ResponseRingSize   = 32 * 1024
	DoorbellOffset     = 0x10000
	DoorbellSize       = 256
	HeapControlOffset  = 0x10100
	HeapControlSize    = 4 * 1024
	HeapDataOffset     = 0x11000
	HeapDataSize       = 956 * 1024

	MinSharedRegionSize = HeapDataOffset + HeapDataSize
)
