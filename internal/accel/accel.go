// Package accel provides an in-process mock of the external
// accelerator daemon (spec.md §1 "out of scope... they appear only
// where the core consumes them"). It answers CMD_RUN_MODEL commands
// over the IPC transport after a configurable simulated delay, so the
// scheduler's offload path can be exercised without a second process.
package accel

import (
	"runtime"
	"sync"

	"github.com/zen-systems/zenedge/internal/clock"
	"github.com/zen-systems/zenedge/internal/ipc"
	"github.com/zen-systems/zenedge/internal/platform"
	"github.com/zen-systems/zenedge/internal/wire"
)

// MockAccelerator polls the command ring on a background goroutine and
// replies on the response ring after ReplyDelayUS microseconds of
// platform time, converted to cycles through clk so the delay is
// exact even under a logically-clocked Sim.
type MockAccelerator struct {
	peer *ipc.Peer
	plat platform.Platform
	clk  *clock.Clock

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup

	ReplyDelayUS uint64
	ResultFunc   func(cmd wire.CommandPacket) uint32

	// ForceStatus, when non-zero, overrides the response's Status
	// field (e.g. wire.StatusBusy or wire.StatusError) for fault
	// injection in scheduler tests.
	ForceStatus uint16

	// Silent drops the command entirely instead of responding,
	// exercising the scheduler's adaptive-poll timeout path.
	Silent bool
}

// New constructs a MockAccelerator attached to peer, replying with a
// zero result immediately unless ReplyDelayUS is set.
func New(peer *ipc.Peer, plat platform.Platform, clk *clock.Clock) *MockAccelerator {
	return &MockAccelerator{
		peer:       peer,
		plat:       plat,
		clk:        clk,
		done:       make(chan struct{}),
		ResultFunc: func(wire.CommandPacket) uint32 { return 0 },
	}
}

// Start launches the background polling loop.
func (m *MockAccelerator) Start() {
	m.wg.Add(1)
	go m.loop()
}

// Stop halts the background loop and waits for it to exit.
func (m *MockAccelerator) Stop() {
	close(m.done)
	m.wg.Wait()
}

func (m *MockAccelerator) loop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		default:
		}

		cmd, ok := m.peer.PopCommand()
		if !ok {
			runtime.Gosched()
			continue
		}

		if m.ReplyDelayUS > 0 {
			m.plat.BusyWaitTicks(m.clk.USToCycles(m.ReplyDelayUS))
		}

		m.mu.Lock()
		silent := m.Silent
		status := m.ForceStatus
		result := m.ResultFunc(cmd)
		m.mu.Unlock()

		if silent {
			continue
		}
		if status == 0 {
			status = wire.StatusOK
		}

		m.peer.PushResponse(&wire.ResponsePacket{
			Status:      status,
			OrigCmd:     cmd.Cmd,
			Result:      result,
			TimestampUS: m.clk.NowUS(),
		})
	}
}
