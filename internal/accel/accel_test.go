package accel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zen-systems/zenedge/internal/clock"
	"github.com/zen-systems/zenedge/internal/constants"
	"github.com/zen-systems/zenedge/internal/ipc"
	"github.com/zen-systems/zenedge/internal/platform"
	"github.com/zen-systems/zenedge/internal/wire"
)

func newTestPeer(t *testing.T) (*ipc.Transport, *ipc.Peer, *platform.Sim, *clock.Clock) {
	t.Helper()
	sim := platform.NewSim(platform.WithSharedMemSize(constants.MinSharedRegionSize))
	region := sim.SharedMemBase()
	tr := ipc.NewTransport(region, sim)
	peer := ipc.OpenPeer(region, sim)
	clk := clock.New(sim)
	return tr, peer, sim, clk
}

func TestMockAcceleratorEchoesDefaultResult(t *testing.T) {
	tr, peer, sim, clk := newTestPeer(t)
	acc := New(peer, sim, clk)
	acc.Start()
	defer acc.Stop()

	require.True(t, tr.PushCommand(&wire.CommandPacket{Cmd: wire.CmdRunModel, PayloadID: 1}))

	var resp wire.ResponsePacket
	require.Eventually(t, func() bool {
		r, ok := tr.PopResponse()
		if !ok {
			return false
		}
		resp = r
		return true
	}, time.Second, time.Millisecond)

	require.Equal(t, wire.StatusOK, resp.Status)
	require.Equal(t, wire.CmdRunModel, resp.OrigCmd)
	require.Equal(t, uint32(0), resp.Result)
}

func TestMockAcceleratorCustomResultFunc(t *testing.T) {
	tr, peer, sim, clk := newTestPeer(t)
	acc := New(peer, sim, clk)
	acc.ResultFunc = func(cmd wire.CommandPacket) uint32 { return cmd.PayloadID * 2 }
	acc.Start()
	defer acc.Stop()

	require.True(t, tr.PushCommand(&wire.CommandPacket{Cmd: wire.CmdRunModel, PayloadID: 21}))

	var resp wire.ResponsePacket
	require.Eventually(t, func() bool {
		r, ok := tr.PopResponse()
		if !ok {
			return false
		}
		resp = r
		return true
	}, time.Second, time.Millisecond)

	require.Equal(t, uint32(42), resp.Result)
}

func TestMockAcceleratorStopDrainsCleanly(t *testing.T) {
	_, peer, sim, clk := newTestPeer(t)
	acc := New(peer, sim, clk)
	acc.Start()
	acc.Stop()
}

func TestMockAcceleratorForcedStatus(t *testing.T) {
	tr, peer, sim, clk := newTestPeer(t)
	acc := New(peer, sim, clk)
	acc.ForceStatus = wire.StatusBusy
	acc.Start()
	defer acc.Stop()

	require.True(t, tr.PushCommand(&wire.CommandPacket{Cmd: wire.CmdRunModel, PayloadID: 1}))

	var resp wire.ResponsePacket
	require.Eventually(t, func() bool {
		r, ok := tr.PopResponse()
		if !ok {
			return false
		}
		resp = r
		return true
	}, time.Second, time.Millisecond)

	require.Equal(t, wire.StatusBusy, resp.Status)
}

func TestMockAcceleratorSilentNeverResponds(t *testing.T) {
	tr, peer, sim, clk := newTestPeer(t)
	acc := New(peer, sim, clk)
	acc.Silent = true
	acc.Start()
	defer acc.Stop()

	require.True(t, tr.PushCommand(&wire.CommandPacket{Cmd: wire.CmdRunModel, PayloadID: 1}))

	require.Never(t, func() bool {
		_, ok := tr.PopResponse()
		return ok
	}, 50*time.Millisecond, 5*time.Millisecond)
}
