// Package wire defines the byte-exact, little-endian structures that
// cross the shared-memory boundary with the external accelerator peer
// (spec.md §6). Every struct here has a fixed, compile-time-asserted
// size so the layout matches across both sides of the boundary
// regardless of host struct padding.
package wire

import "unsafe"

// Magic numbers (spec.md §6).
const (
	MagicCommandRing  uint32 = 0x51DECA9E
	MagicResponseRing uint32 = 0x52535030
	MagicDoorbell     uint32 = 0x444F4F52
	MagicHeap         uint32 = 0x48454150
	MagicBlob         uint32 = 0x424C4F42
)

// Command codes (spec.md §6).
const (
	CmdPing     uint16 = 0x0001
	CmdPrint    uint16 = 0x0002
	CmdRunModel uint16 = 0x0010
)

// Response statuses (spec.md §6).
const (
	StatusOK    uint16 = 0x8000
	StatusError uint16 = 0x8001
	StatusBusy  uint16 = 0x8002
)

// Command flags.
const (
	FlagIRQOnComplete uint16 = 0x0001
)

// Doorbell flags (spec.md §3).
const (
	DoorbellIRQEnabled uint8 = 0x01
	DoorbellPending    uint8 = 0x02
)

// Flight event types (spec.md §4.2, §8 scenarios).
const (
	EventJobSubmit           uint8 = 0x00
	EventJobAdmit            uint8 = 0x01
	EventJobReject            uint8 = 0x02
	EventJobComplete          uint8 = 0x03
	EventStepStart            uint8 = 0x10
	EventStepEnd              uint8 = 0x11
	EventMemAlloc             uint8 = 0x20
	EventMemFree              uint8 = 0x21
	EventMemAllocFail         uint8 = 0x22
	EventMemLocalityMiss      uint8 = 0x23
	EventMemNodeUnsupported   uint8 = 0x24
	EventContractApply        uint8 = 0x30
	EventContractStateChange  uint8 = 0x31
	EventContractBudgetWarn   uint8 = 0x32
	EventContractBudgetExceed uint8 = 0x33
	EventContractSafeMode     uint8 = 0x34
	EventOffloadDispatch      uint8 = 0x40
	EventOffloadComplete      uint8 = 0x41
	EventStepTimeout          uint8 = 0x42
	EventRecorderSpanDropped  uint8 = 0xF0
)

// Job admission rejection reasons (spec.md §4.5 "REJECT_CPU |
// REJECT_MEMORY | REJECT_PRIORITY | REJECT_NO_RESOURCES"). They are not
// logged: an EventJobReject's Extra carries the job's peak memory in
// KiB.
const (
	RejectCPU         uint32 = 1
	RejectMemory      uint32 = 2
	RejectPriority    uint32 = 3
	RejectNoResources uint32 = 4
)

// Blob types (spec.md §6).
const (
	BlobRaw      uint8 = 0
	BlobTensor   uint8 = 1
	BlobModelRef uint8 = 2
	BlobResult   uint8 = 3
)

// CommandPacket is the 16-byte command ring entry (spec.md §3).
type CommandPacket struct {
	Cmd       uint16
	Flags     uint16
	PayloadID uint32
	TimestampUS uint64
}

var _ [16]byte = [unsafe.Sizeof(CommandPacket{})]byte{}

// ResponsePacket is the 16-byte response ring entry (spec.md §3).
type ResponsePacket struct {
	Status      uint16
	OrigCmd     uint16
	Result      uint32
	TimestampUS uint64
}

var _ [16]byte = [unsafe.Sizeof(ResponsePacket{})]byte{}

// RingHeader is the 64-byte preamble in front of a ring's payload
// array (spec.md §3). Size is a power of two.
type RingHeader struct {
	Magic    uint32
	Head     uint32
	Tail     uint32
	Size     uint32
	Reserved [4]uint32
	_        [64 - 4*4 - 4*4]byte // pad out to exactly 64 bytes
}

var _ [64]byte = [unsafe.Sizeof(RingHeader{})]byte{}

// RingHeaderSize is the byte offset of the first slot past a ring's
// header preamble.
const RingHeaderSize = 64

// DoorbellBlock is the 256-byte control block written by either side
// to notify the other (spec.md §3, §6).
type DoorbellBlock struct {
	Magic        uint32
	Version      uint32
	CmdDoorbell  uint32
	CmdFlags     uint32
	CmdIRQCount  uint32
	RspDoorbell  uint32
	RspFlags     uint32
	RspIRQCount  uint32
	CmdWrites    uint64
	RspWrites    uint64
	_            [256 - 8*4 - 2*8]byte
}

var _ [256]byte = [unsafe.Sizeof(DoorbellBlock{})]byte{}

// BlobHeader is the 32-byte header preceding every blob's payload
// (spec.md §3, §6).
type BlobHeader struct {
	Magic    uint32
	BlobID   uint16
	Type     uint8
	Flags    uint8
	Size     uint32
	Offset   uint32
	Checksum uint32
	Reserved [3]uint32
}

var _ [32]byte = [unsafe.Sizeof(BlobHeader{})]byte{}

// BlobHeaderSize is sizeof(BlobHeader) (spec.md §4.7: "a blob header's
// offset equals its base offset in the region plus sizeof(header)").
const BlobHeaderSize = 32

// TensorHeader is embedded immediately after a BlobHeader for
// BlobTensor blobs (spec.md §3, §6).
type TensorHeader struct {
	Dtype    uint8
	Ndim     uint8
	Reserved uint16
	Shape    [4]uint32
	Strides  [4]uint32
}

var _ [4 + 4*4 + 4*4]byte = [unsafe.Sizeof(TensorHeader{})]byte{}

// TensorHeaderSize is sizeof(TensorHeader).
const TensorHeaderSize = 4 + 4*4 + 4*4

// HeapControl is the control block at the front of the shared blob
// heap (spec.md §3). Its bitmap is variably sized and handled
// separately by internal/heap.
type HeapControl struct {
	Magic       uint32
	Version     uint32
	TotalBlocks uint32
	FreeBlocks  uint32
	NextBlobID  uint16
}

// HeapControlFixedSize is the size of the fixed portion of
// HeapControl, i.e. everything before the bitmap.
const HeapControlFixedSize = 4 + 4 + 4 + 4 + 2

// FlightEvent is the fixed 32-byte flight recorder event
// (spec.md §3, §6).
type FlightEvent struct {
	TimestampUS uint64
	TimestampCycles uint64
	Type     uint8
	Flags    uint8
	CPUID    uint16
	JobID    uint32
	StepID   uint32
	Extra    uint32
}

var _ [32]byte = [unsafe.Sizeof(FlightEvent{})]byte{}
