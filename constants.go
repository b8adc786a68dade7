package zenedge

import "github.com/zen-systems/zenedge/internal/constants"

// Re-exported constants for public API consumers.
const (
	PageSize = constants.PageSize

	NodeLocal  = constants.NodeLocal
	NodeRemote = constants.NodeRemote
	NodeAny    = constants.NodeAny

	MaxSteps   = constants.MaxSteps
	MaxTensors = constants.MaxTensors
	MaxDeps    = constants.MaxDeps
	MaxInputs  = constants.MaxInputs
	MaxOutputs = constants.MaxOutputs

	DefaultRecorderCapacity = constants.DefaultRecorderCapacity
	MaxActiveSpans          = constants.MaxActiveSpans

	MinSharedRegionSize = constants.MinSharedRegionSize
)

var (
	DefaultSpinBudget    = constants.DefaultSpinBudget
	DefaultPollInterval  = constants.DefaultPollInterval
	DefaultPollDeadline  = constants.DefaultPollDeadline
	DefaultBusyLoopTicks = constants.DefaultBusyLoopTicks
)
