package ipc

import (
	"sync/atomic"
	"unsafe"

	"github.com/zen-systems/zenedge/internal/wire"
)

// doorbell is a view over the 256-byte DoorbellBlock (spec.md §3,
// §4.6). Every field is accessed atomically since both the kernel
// side and the accelerator peer read/write it concurrently.
type doorbell struct {
	buf []byte // exactly wire.DoorbellSize bytes
}

func newDoorbell(buf []byte) *doorbell {
	d := &doorbell{buf: buf}
	d.store32(0, wire.MagicDoorbell)
	d.store32(4, 1) // version
	return d
}

func openDoorbell(buf []byte) *doorbell {
	return &doorbell{buf: buf}
}

func (d *doorbell) load32(off int) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&d.buf[off])))
}
func (d *doorbell) store32(off int, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&d.buf[off])), v)
}
func (d *doorbell) add64(off int, delta uint64) {
	atomic.AddUint64((*uint64)(unsafe.Pointer(&d.buf[off])), delta)
}

// Doorbell field byte offsets, matching DoorbellBlock's field order.
const (
	offCmdDoorbell = 8
	offCmdFlags    = 12
	offCmdIRQCount = 16
	offRspDoorbell = 20
	offRspFlags    = 24
	offRspIRQCount = 28
	offCmdWrites   = 32
	offRspWrites   = 40
)

// ringCmd and ringRsp implement spec.md §4.6 producer step 5: write
// next to the peer's doorbell register, increment writes, and if the
// peer has IRQ_ENABLED set, set PENDING and increment the IRQ counter.
// notifyIRQ is called only when PENDING transitions to set, mirroring
// a real interrupt line that does not need re-asserting while
// already pending.
func (d *doorbell) ringCmd(next uint32, notifyIRQ func()) {
	d.store32(offCmdDoorbell, next)
	d.add64(offCmdWrites, 1)
	flags := d.load32(offCmdFlags)
	if flags&uint32(wire.DoorbellIRQEnabled) != 0 {
		atomic.AddUint32((*uint32)(unsafe.Pointer(&d.buf[offCmdIRQCount])), 1)
		if flags&uint32(wire.DoorbellPending) == 0 {
			d.store32(offCmdFlags, flags|uint32(wire.DoorbellPending))
			if notifyIRQ != nil {
				notifyIRQ()
			}
		}
	}
}

func (d *doorbell) ringRsp(next uint32, notifyIRQ func()) {
	d.store32(offRspDoorbell, next)
	d.add64(offRspWrites, 1)
	flags := d.load32(offRspFlags)
	if flags&uint32(wire.DoorbellIRQEnabled) != 0 {
		atomic.AddUint32((*uint32)(unsafe.Pointer(&d.buf[offRspIRQCount])), 1)
		if flags&uint32(wire.DoorbellPending) == 0 {
			d.store32(offRspFlags, flags|uint32(wire.DoorbellPending))
			if notifyIRQ != nil {
				notifyIRQ()
			}
		}
	}
}

// EnableCmdIRQ sets IRQ_ENABLED on the command-ring consumer side
// (the accelerator peer requesting IRQ delivery for new commands).
func (d *doorbell) EnableCmdIRQ() {
	flags := d.load32(offCmdFlags)
	d.store32(offCmdFlags, flags|uint32(wire.DoorbellIRQEnabled))
}

// EnableRspIRQ sets IRQ_ENABLED on the response-ring consumer side
// (the kernel requesting IRQ delivery for new responses).
func (d *doorbell) EnableRspIRQ() {
	flags := d.load32(offRspFlags)
	d.store32(offRspFlags, flags|uint32(wire.DoorbellIRQEnabled))
}

// ClearCmdPending clears PENDING at the top of the command-ring
// consumer's interrupt handler; callers must re-drain the ring after
// clearing to avoid a lost wakeup (spec.md §4.6).
func (d *doorbell) ClearCmdPending() {
	flags := d.load32(offCmdFlags)
	d.store32(offCmdFlags, flags&^uint32(wire.DoorbellPending))
}

// ClearRspPending is ClearCmdPending's response-ring counterpart.
func (d *doorbell) ClearRspPending() {
	flags := d.load32(offRspFlags)
	d.store32(offRspFlags, flags&^uint32(wire.DoorbellPending))
}

// CmdWrites returns the total number of command-ring publishes.
func (d *doorbell) CmdWrites() uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&d.buf[offCmdWrites])))
}

// RspWrites returns the total number of response-ring publishes.
func (d *doorbell) RspWrites() uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&d.buf[offRspWrites])))
}
