package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zen-systems/zenedge/internal/wire"
)

// dumpEvents writes a recorder's captured events to path as JSON, so
// a later invocation of stats/replay can inspect a run without
// re-executing it.
func dumpEvents(path string, events []wire.FlightEvent) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// loadEvents reads a previously dumped event list.
func loadEvents(path string) ([]wire.FlightEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var events []wire.FlightEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return events, nil
}

func eventName(t uint8) string {
	switch t {
	case wire.EventJobSubmit:
		return "JOB_SUBMIT"
	case wire.EventJobAdmit:
		return "JOB_ADMIT"
	case wire.EventJobReject:
		return "JOB_REJECT"
	case wire.EventJobComplete:
		return "JOB_COMPLETE"
	case wire.EventStepStart:
		return "STEP_START"
	case wire.EventStepEnd:
		return "STEP_END"
	case wire.EventMemAlloc:
		return "MEM_ALLOC"
	case wire.EventMemFree:
		return "MEM_FREE"
	case wire.EventMemAllocFail:
		return "MEM_ALLOC_FAIL"
	case wire.EventMemLocalityMiss:
		return "MEM_LOCALITY_MISS"
	case wire.EventMemNodeUnsupported:
		return "MEM_NODE_UNSUPPORTED"
	case wire.EventContractApply:
		return "CONTRACT_APPLY"
	case wire.EventContractStateChange:
		return "CONTRACT_STATE_CHANGE"
	case wire.EventContractBudgetWarn:
		return "CONTRACT_BUDGET_WARN"
	case wire.EventContractBudgetExceed:
		return "CONTRACT_BUDGET_EXCEED"
	case wire.EventContractSafeMode:
		return "CONTRACT_SAFE_MODE"
	case wire.EventOffloadDispatch:
		return "OFFLOAD_DISPATCH"
	case wire.EventOffloadComplete:
		return "OFFLOAD_COMPLETE"
	case wire.EventStepTimeout:
		return "STEP_TIMEOUT"
	case wire.EventRecorderSpanDropped:
		return "RECORDER_SPAN_DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", t)
	}
}
