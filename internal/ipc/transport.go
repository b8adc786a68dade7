package ipc

import (
	"github.com/zen-systems/zenedge/internal/constants"
	"github.com/zen-systems/zenedge/internal/platform"
	"github.com/zen-systems/zenedge/internal/wire"
)

// cmdRingCapacity and rspRingCapacity are the number of 16-byte slots
// that fit in each ring after its header, derived from the
// shared-memory layout (spec.md §6). NewTransport and OpenPeer round
// them down to a power of two with roundDownPow2.
const (
	cmdRingCapacity = (constants.CommandRingSize - wire.RingHeaderSize) / 16
	rspRingCapacity = (constants.ResponseRingSize - wire.RingHeaderSize) / 16
)

// Transport is the kernel-side handle onto the shared-memory IPC
// region: it produces onto the command ring and consumes from the
// response ring (spec.md §4.6). Peer is the accelerator's dual view
// over the same bytes.
type Transport struct {
	cmd  *ring
	rsp  *ring
	bell *doorbell
	plat platform.Platform
}

// Peer is the accelerator-side handle: it consumes the command ring
// and produces onto the response ring.
type Peer struct {
	cmd  *ring
	rsp  *ring
	bell *doorbell
	plat platform.Platform
}

// NewTransport carves the command ring, response ring, and doorbell
// out of region (a view starting at the shared-memory base) using the
// fixed offsets of spec.md §6, initializing all three headers. plat
// is used to deliver IRQ notifications when the doorbell signals a
// PENDING transition.
func NewTransport(region []byte, plat platform.Platform) *Transport {
	cmd := newRing(region[constants.CommandRingOffset:constants.CommandRingOffset+constants.CommandRingSize], 16, roundDownPow2(cmdRingCapacity), wire.MagicCommandRing)
	rsp := newRing(region[constants.ResponseRingOffset:constants.ResponseRingOffset+constants.ResponseRingSize], 16, roundDownPow2(rspRingCapacity), wire.MagicResponseRing)
	bell := newDoorbell(region[constants.DoorbellOffset : constants.DoorbellOffset+constants.DoorbellSize])
	return &Transport{cmd: cmd, rsp: rsp, bell: bell, plat: plat}
}

// OpenPeer attaches an accelerator-side Peer to the same
// already-initialized region as t.
func OpenPeer(region []byte, plat platform.Platform) *Peer {
	cmdCap := roundDownPow2(cmdRingCapacity)
	cmd := openRing(region[constants.CommandRingOffset:constants.CommandRingOffset+constants.CommandRingSize], 16, cmdCap)
	rspCap := roundDownPow2(rspRingCapacity)
	rsp := openRing(region[constants.ResponseRingOffset:constants.ResponseRingOffset+constants.ResponseRingSize], 16, rspCap)
	bell := openDoorbell(region[constants.DoorbellOffset : constants.DoorbellOffset+constants.DoorbellSize])
	return &Peer{cmd: cmd, rsp: rsp, bell: bell, plat: plat}
}

func roundDownPow2(n uint32) uint32 {
	p := uint32(1)
	for p*2 <= n {
		p *= 2
	}
	return p
}

// irqVectorResponse and irqVectorCommand are the platform.RegisterIRQ
// vectors used by the response-ring and command-ring doorbells
// respectively.
const (
	irqVectorCommand  = 1
	irqVectorResponse = 2
)

// PushCommand publishes p onto the command ring, returning false if
// full (spec.md §4.6 producer algorithm).
func (t *Transport) PushCommand(p *wire.CommandPacket) bool {
	var buf [16]byte
	wire.PutCommandPacket(buf[:], p)
	if !t.cmd.push(buf[:]) {
		return false
	}
	t.bell.ringCmd(t.cmd.loadHead(), func() { notify(t.plat, irqVectorCommand) })
	return true
}

// PopResponse consumes the next response, returning false if empty
// (spec.md §4.6 consumer algorithm).
func (t *Transport) PopResponse() (wire.ResponsePacket, bool) {
	var buf [16]byte
	if !t.rsp.pop(buf[:]) {
		return wire.ResponsePacket{}, false
	}
	p, err := wire.GetResponsePacket(buf[:])
	if err != nil {
		return wire.ResponsePacket{}, false
	}
	return p, true
}

// ResponseEmpty reports whether the response ring has nothing to
// consume. Doorbell writes are advisory (spec.md §4.6): a caller must
// still check head != tail regardless of PENDING state.
func (t *Transport) ResponseEmpty() bool { return t.rsp.empty() }

// EnableResponseIRQ requests IRQ-driven wakeup when the peer
// publishes a response, and registers handler for that vector.
func (t *Transport) EnableResponseIRQ(handler func()) {
	t.bell.EnableRspIRQ()
	t.plat.RegisterIRQ(irqVectorResponse, func() {
		t.bell.ClearRspPending()
		handler()
	})
}

// PopCommand consumes the next command published by the kernel,
// returning false if empty.
func (p *Peer) PopCommand() (wire.CommandPacket, bool) {
	var buf [16]byte
	if !p.cmd.pop(buf[:]) {
		return wire.CommandPacket{}, false
	}
	pkt, err := wire.GetCommandPacket(buf[:])
	if err != nil {
		return wire.CommandPacket{}, false
	}
	return pkt, true
}

// PushResponse publishes r onto the response ring, returning false if
// full.
func (p *Peer) PushResponse(r *wire.ResponsePacket) bool {
	var buf [16]byte
	wire.PutResponsePacket(buf[:], r)
	if !p.rsp.push(buf[:]) {
		return false
	}
	p.bell.ringRsp(p.rsp.loadHead(), func() { notify(p.plat, irqVectorResponse) })
	return true
}

// CommandEmpty reports whether the command ring has nothing to
// consume.
func (p *Peer) CommandEmpty() bool { return p.cmd.empty() }

// EnableCommandIRQ requests IRQ-driven wakeup when the kernel
// publishes a command.
func (p *Peer) EnableCommandIRQ(handler func()) {
	p.bell.EnableCmdIRQ()
	p.plat.RegisterIRQ(irqVectorCommand, func() {
		p.bell.ClearCmdPending()
		handler()
	})
}

// notify fires vector's registered handler directly on platforms that
// expose a synchronous FireIRQ (the deterministic Sim), and calls
// NotifyIRQ on platforms that expose it (Hosted), whose eventfd loop
// then runs the registered handlers asynchronously.
func notify(plat platform.Platform, vector int) {
	type irqFirer interface{ FireIRQ(vector int) }
	if firer, ok := plat.(irqFirer); ok {
		firer.FireIRQ(vector)
	}
	type irqNotifier interface{ NotifyIRQ() error }
	if notifier, ok := plat.(irqNotifier); ok {
		_ = notifier.NotifyIRQ()
	}
}
