package wire

import "encoding/binary"

// ErrShortBuffer is returned when an Unmarshal call is given fewer
// bytes than the structure requires.
type marshalError string

func (e marshalError) Error() string { return string(e) }

const ErrShortBuffer marshalError = "wire: insufficient data to unmarshal"

// PutCommandPacket writes a CommandPacket to buf[0:16] in little-endian.
func PutCommandPacket(buf []byte, p *CommandPacket) {
	binary.LittleEndian.PutUint16(buf[0:2], p.Cmd)
	binary.LittleEndian.PutUint16(buf[2:4], p.Flags)
	binary.LittleEndian.PutUint32(buf[4:8], p.PayloadID)
	binary.LittleEndian.PutUint64(buf[8:16], p.TimestampUS)
}

// GetCommandPacket reads a CommandPacket from buf[0:16].
func GetCommandPacket(buf []byte) (CommandPacket, error) {
	if len(buf) < 16 {
		return CommandPacket{}, ErrShortBuffer
	}
	return CommandPacket{
		Cmd:         binary.LittleEndian.Uint16(buf[0:2]),
		Flags:       binary.LittleEndian.Uint16(buf[2:4]),
		PayloadID:   binary.LittleEndian.Uint32(buf[4:8]),
		TimestampUS: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// PutResponsePacket writes a ResponsePacket to buf[0:16].
func PutResponsePacket(buf []byte, p *ResponsePacket) {
	binary.LittleEndian.PutUint16(buf[0:2], p.Status)
	binary.LittleEndian.PutUint16(buf[2:4], p.OrigCmd)
	binary.LittleEndian.PutUint32(buf[4:8], p.Result)
	binary.LittleEndian.PutUint64(buf[8:16], p.TimestampUS)
}

// GetResponsePacket reads a ResponsePacket from buf[0:16].
func GetResponsePacket(buf []byte) (ResponsePacket, error) {
	if len(buf) < 16 {
		return ResponsePacket{}, ErrShortBuffer
	}
	return ResponsePacket{
		Status:      binary.LittleEndian.Uint16(buf[0:2]),
		OrigCmd:     binary.LittleEndian.Uint16(buf[2:4]),
		Result:      binary.LittleEndian.Uint32(buf[4:8]),
		TimestampUS: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// PutRingHeader writes a RingHeader's logical fields to buf[0:64].
// Head/Tail are written with release semantics by the caller (the
// ring implementation issues the memory barrier; this just encodes
// bytes).
func PutRingHeader(buf []byte, h *RingHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Head)
	binary.LittleEndian.PutUint32(buf[8:12], h.Tail)
	binary.LittleEndian.PutUint32(buf[12:16], h.Size)
	for i, r := range h.Reserved {
		binary.LittleEndian.PutUint32(buf[16+i*4:20+i*4], r)
	}
}

// GetRingHeader reads a RingHeader from buf[0:64].
func GetRingHeader(buf []byte) (RingHeader, error) {
	if len(buf) < 64 {
		return RingHeader{}, ErrShortBuffer
	}
	var h RingHeader
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Head = binary.LittleEndian.Uint32(buf[4:8])
	h.Tail = binary.LittleEndian.Uint32(buf[8:12])
	h.Size = binary.LittleEndian.Uint32(buf[12:16])
	for i := range h.Reserved {
		h.Reserved[i] = binary.LittleEndian.Uint32(buf[16+i*4 : 20+i*4])
	}
	return h, nil
}

// PutBlobHeader writes a BlobHeader to buf[0:32].
func PutBlobHeader(buf []byte, h *BlobHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.BlobID)
	buf[6] = h.Type
	buf[7] = h.Flags
	binary.LittleEndian.PutUint32(buf[8:12], h.Size)
	binary.LittleEndian.PutUint32(buf[12:16], h.Offset)
	binary.LittleEndian.PutUint32(buf[16:20], h.Checksum)
	for i, r := range h.Reserved {
		binary.LittleEndian.PutUint32(buf[20+i*4:24+i*4], r)
	}
}

// GetBlobHeader reads a BlobHeader from buf[0:32].
func GetBlobHeader(buf []byte) (BlobHeader, error) {
	if len(buf) < 32 {
		return BlobHeader{}, ErrShortBuffer
	}
	var h BlobHeader
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.BlobID = binary.LittleEndian.Uint16(buf[4:6])
	h.Type = buf[6]
	h.Flags = buf[7]
	h.Size = binary.LittleEndian.Uint32(buf[8:12])
	h.Offset = binary.LittleEndian.Uint32(buf[12:16])
	h.Checksum = binary.LittleEndian.Uint32(buf[16:20])
	for i := range h.Reserved {
		h.Reserved[i] = binary.LittleEndian.Uint32(buf[20+i*4 : 24+i*4])
	}
	return h, nil
}

// PutTensorHeader writes a TensorHeader to buf[0:36].
func PutTensorHeader(buf []byte, h *TensorHeader) {
	buf[0] = h.Dtype
	buf[1] = h.Ndim
	binary.LittleEndian.PutUint16(buf[2:4], h.Reserved)
	for i, s := range h.Shape {
		binary.LittleEndian.PutUint32(buf[4+i*4:8+i*4], s)
	}
	for i, s := range h.Strides {
		binary.LittleEndian.PutUint32(buf[20+i*4:24+i*4], s)
	}
}

// GetTensorHeader reads a TensorHeader from buf[0:36].
func GetTensorHeader(buf []byte) (TensorHeader, error) {
	if len(buf) < 36 {
		return TensorHeader{}, ErrShortBuffer
	}
	var h TensorHeader
	h.Dtype = buf[0]
	h.Ndim = buf[1]
	h.Reserved = binary.LittleEndian.Uint16(buf[2:4])
	for i := range h.Shape {
		h.Shape[i] = binary.LittleEndian.Uint32(buf[4+i*4 : 8+i*4])
	}
	for i := range h.Strides {
		h.Strides[i] = binary.LittleEndian.Uint32(buf[20+i*4 : 24+i*4])
	}
	return h, nil
}

// PutDoorbellBlock writes a DoorbellBlock to buf[0:256].
func PutDoorbellBlock(buf []byte, d *DoorbellBlock) {
	binary.LittleEndian.PutUint32(buf[0:4], d.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], d.Version)
	binary.LittleEndian.PutUint32(buf[8:12], d.CmdDoorbell)
	binary.LittleEndian.PutUint32(buf[12:16], d.CmdFlags)
	binary.LittleEndian.PutUint32(buf[16:20], d.CmdIRQCount)
	binary.LittleEndian.PutUint32(buf[20:24], d.RspDoorbell)
	binary.LittleEndian.PutUint32(buf[24:28], d.RspFlags)
	binary.LittleEndian.PutUint32(buf[28:32], d.RspIRQCount)
	binary.LittleEndian.PutUint64(buf[32:40], d.CmdWrites)
	binary.LittleEndian.PutUint64(buf[40:48], d.RspWrites)
}

// GetDoorbellBlock reads a DoorbellBlock from buf[0:256].
func GetDoorbellBlock(buf []byte) (DoorbellBlock, error) {
	if len(buf) < 48 {
		return DoorbellBlock{}, ErrShortBuffer
	}
	var d DoorbellBlock
	d.Magic = binary.LittleEndian.Uint32(buf[0:4])
	d.Version = binary.LittleEndian.Uint32(buf[4:8])
	d.CmdDoorbell = binary.LittleEndian.Uint32(buf[8:12])
	d.CmdFlags = binary.LittleEndian.Uint32(buf[12:16])
	d.CmdIRQCount = binary.LittleEndian.Uint32(buf[16:20])
	d.RspDoorbell = binary.LittleEndian.Uint32(buf[20:24])
	d.RspFlags = binary.LittleEndian.Uint32(buf[24:28])
	d.RspIRQCount = binary.LittleEndian.Uint32(buf[28:32])
	d.CmdWrites = binary.LittleEndian.Uint64(buf[32:40])
	d.RspWrites = binary.LittleEndian.Uint64(buf[40:48])
	return d, nil
}

// PutHeapControlFixed writes HeapControl's fixed portion (everything
// before the bitmap) to buf[0:HeapControlFixedSize].
func PutHeapControlFixed(buf []byte, h *HeapControl) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.TotalBlocks)
	binary.LittleEndian.PutUint32(buf[12:16], h.FreeBlocks)
	binary.LittleEndian.PutUint16(buf[16:18], h.NextBlobID)
}

// GetHeapControlFixed reads HeapControl's fixed portion from
// buf[0:HeapControlFixedSize].
func GetHeapControlFixed(buf []byte) (HeapControl, error) {
	if len(buf) < HeapControlFixedSize {
		return HeapControl{}, ErrShortBuffer
	}
	var h HeapControl
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.TotalBlocks = binary.LittleEndian.Uint32(buf[8:12])
	h.FreeBlocks = binary.LittleEndian.Uint32(buf[12:16])
	h.NextBlobID = binary.LittleEndian.Uint16(buf[16:18])
	return h, nil
}

// PutFlightEvent writes a FlightEvent to buf[0:32].
func PutFlightEvent(buf []byte, e *FlightEvent) {
	binary.LittleEndian.PutUint64(buf[0:8], e.TimestampUS)
	binary.LittleEndian.PutUint64(buf[8:16], e.TimestampCycles)
	buf[16] = e.Type
	buf[17] = e.Flags
	binary.LittleEndian.PutUint16(buf[18:20], e.CPUID)
	binary.LittleEndian.PutUint32(buf[20:24], e.JobID)
	binary.LittleEndian.PutUint32(buf[24:28], e.StepID)
	binary.LittleEndian.PutUint32(buf[28:32], e.Extra)
}

// GetFlightEvent reads a FlightEvent from buf[0:32].
func GetFlightEvent(buf []byte) (FlightEvent, error) {
	if len(buf) < 32 {
		return FlightEvent{}, ErrShortBuffer
	}
	var e FlightEvent
	e.TimestampUS = binary.LittleEndian.Uint64(buf[0:8])
	e.TimestampCycles = binary.LittleEndian.Uint64(buf[8:16])
	e.Type = buf[16]
	e.Flags = buf[17]
	e.CPUID = binary.LittleEndian.Uint16(buf[18:20])
	e.JobID = binary.LittleEndian.Uint32(buf[20:24])
	e.StepID = binary.LittleEndian.Uint32(buf[24:28])
	e.Extra = binary.LittleEndian.Uint32(buf[28:32])
	return e, nil
}
