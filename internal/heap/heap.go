// Package heap implements the shared blob heap (spec.md §4.7): a
// bitmap allocator of fixed-size 64-byte blocks over a shared-memory
// region, with typed blobs and an embedded tensor descriptor for
// tensor-shaped payloads.
package heap

import (
	"sync"

	"github.com/zen-systems/zenedge/internal/constants"
	"github.com/zen-systems/zenedge/internal/jobgraph"
	"github.com/zen-systems/zenedge/internal/wire"
)

type entry struct {
	offset int // block-aligned offset of the blob header within data
	blocks int
}

// Heap is a bitmap-allocated blob heap over a shared-memory region.
type Heap struct {
	mu sync.Mutex

	control []byte // HeapControlSize bytes
	data    []byte // HeapDataSize bytes
	bitmap  []byte // bit=1 means allocated

	totalBlocks int
	freeBlocks  int
	nextBlobID  uint16

	index map[uint16]entry
}

// New carves a Heap out of region (a view starting at the
// shared-memory base) using the fixed offsets of spec.md §6, writing
// the magic and zeroing the bitmap.
func New(region []byte) *Heap {
	control := region[constants.HeapControlOffset : constants.HeapControlOffset+constants.HeapControlSize]
	data := region[constants.HeapDataOffset : constants.HeapDataOffset+constants.HeapDataSize]

	totalBlocks := len(data) / constants.HeapBlockSize
	bitmapBytes := (totalBlocks + 7) / 8
	bitmap := control[wire.HeapControlFixedSize : wire.HeapControlFixedSize+bitmapBytes]
	for i := range bitmap {
		bitmap[i] = 0
	}

	h := &Heap{
		control:     control,
		data:        data,
		bitmap:      bitmap,
		totalBlocks: totalBlocks,
		freeBlocks:  totalBlocks,
		nextBlobID:  1,
		index:       make(map[uint16]entry),
	}
	h.writeControl()
	return h
}

func (h *Heap) writeControl() {
	hc := wire.HeapControl{
		Magic:       wire.MagicHeap,
		Version:     1,
		TotalBlocks: uint32(h.totalBlocks),
		FreeBlocks:  uint32(h.freeBlocks),
		NextBlobID:  h.nextBlobID,
	}
	wire.PutHeapControlFixed(h.control, &hc)
}

func (h *Heap) testBit(i int) bool { return h.bitmap[i/8]&(1<<(uint(i)%8)) != 0 }
func (h *Heap) setBit(i int)       { h.bitmap[i/8] |= 1 << (uint(i) % 8) }
func (h *Heap) clearBit(i int)     { h.bitmap[i/8] &^= 1 << (uint(i) % 8) }

// blocksFor returns the smallest block count covering payloadBytes
// plus a blob header.
func blocksFor(payloadBytes int) int {
	total := payloadBytes + wire.BlobHeaderSize
	return (total + constants.HeapBlockSize - 1) / constants.HeapBlockSize
}

// findRun returns the first contiguous run of count clear bits.
func (h *Heap) findRun(count int) (int, bool) {
	block := 0
	for block+count <= h.totalBlocks {
		run := 0
		for run < count && block+run < h.totalBlocks && !h.testBit(block+run) {
			run++
		}
		if run == count {
			return block, true
		}
		block += run + 1
	}
	return 0, false
}

func (h *Heap) nextID() uint16 {
	id := h.nextBlobID
	h.nextBlobID++
	if h.nextBlobID == 0 {
		h.nextBlobID = 1 // wraps past 0: 0 is never a valid blob id
	}
	return id
}

// Alloc allocates the first-fit contiguous run of free blocks covering
// size bytes plus a blob header, writes the header at the run's
// offset, and returns the new blob id, or 0 on exhaustion.
func (h *Heap) Alloc(size int, blobType uint8) uint16 {
	h.mu.Lock()
	defer h.mu.Unlock()

	blocks := blocksFor(size)
	block, ok := h.findRun(blocks)
	if !ok {
		return 0
	}
	for i := 0; i < blocks; i++ {
		h.setBit(block + i)
	}
	h.freeBlocks -= blocks

	id := h.nextID()
	offset := block * constants.HeapBlockSize
	header := wire.BlobHeader{
		Magic:  wire.MagicBlob,
		BlobID: id,
		Type:   blobType,
		Size:   uint32(size),
		Offset: uint32(offset + wire.BlobHeaderSize),
	}
	wire.PutBlobHeader(h.data[offset:offset+wire.BlobHeaderSize], &header)

	h.index[id] = entry{offset: offset, blocks: blocks}
	h.writeControl()
	return id
}

// Free releases blobID's blocks and removes it from the local index.
// A free on an unknown id is a no-op.
func (h *Heap) Free(blobID uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.index[blobID]
	if !ok {
		return
	}
	for i := 0; i < e.blocks; i++ {
		h.clearBit(e.offset/constants.HeapBlockSize + i)
	}
	h.freeBlocks += e.blocks
	delete(h.index, blobID)
	h.writeControl()
}

// Get returns blobID's header, consulting the local index first and
// falling back to a linear scan of block-aligned offsets for a header
// written by the accelerator peer on the other side of the region.
func (h *Heap) Get(blobID uint16) (wire.BlobHeader, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.index[blobID]; ok {
		hdr, err := wire.GetBlobHeader(h.data[e.offset : e.offset+wire.BlobHeaderSize])
		if err == nil && hdr.Magic == wire.MagicBlob && hdr.BlobID == blobID {
			return hdr, true
		}
	}

	for block := 0; block < h.totalBlocks; block++ {
		if !h.testBit(block) {
			continue
		}
		offset := block * constants.HeapBlockSize
		hdr, err := wire.GetBlobHeader(h.data[offset : offset+wire.BlobHeaderSize])
		if err != nil || hdr.Magic != wire.MagicBlob || hdr.BlobID != blobID {
			continue
		}
		blocks := blocksFor(int(hdr.Size))
		h.index[blobID] = entry{offset: offset, blocks: blocks}
		return hdr, true
	}
	return wire.BlobHeader{}, false
}

// AllocTensor computes nelem = Π shape[:ndim], allocates a TENSOR blob
// sized for the embedded tensor header plus the raw element data, and
// fills the tensor header with row-major strides computed
// right-to-left.
func (h *Heap) AllocTensor(dtype jobgraph.DType, ndim int, shape [4]uint32) uint16 {
	nelem := 1
	for i := 0; i < ndim; i++ {
		nelem *= int(shape[i])
	}
	elemSize := jobgraph.ElemSize(dtype)
	payload := wire.TensorHeaderSize + nelem*elemSize

	id := h.Alloc(payload, wire.BlobTensor)
	if id == 0 {
		return 0
	}

	h.mu.Lock()
	e := h.index[id]
	h.mu.Unlock()

	var strides [4]uint32
	acc := uint32(1)
	for i := ndim - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}

	th := wire.TensorHeader{
		Dtype:   uint8(dtype),
		Ndim:    uint8(ndim),
		Shape:   shape,
		Strides: strides,
	}
	tensorOff := e.offset + wire.BlobHeaderSize
	wire.PutTensorHeader(h.data[tensorOff:tensorOff+wire.TensorHeaderSize], &th)
	return id
}

// GetTensorData validates blobID's tensor header (magic, ndim ≤ 4,
// and that the declared shape fits within the blob's size) and
// returns a view over the raw element data following the header, or
// nil if any check fails.
func (h *Heap) GetTensorData(blobID uint16) []byte {
	hdr, ok := h.Get(blobID)
	if !ok || hdr.Type != wire.BlobTensor {
		return nil
	}

	h.mu.Lock()
	e, ok := h.index[blobID]
	h.mu.Unlock()
	if !ok {
		return nil
	}

	tensorOff := e.offset + wire.BlobHeaderSize
	th, err := wire.GetTensorHeader(h.data[tensorOff : tensorOff+wire.TensorHeaderSize])
	if err != nil || th.Ndim > 4 {
		return nil
	}

	nelem := 1
	for i := 0; i < int(th.Ndim); i++ {
		nelem *= int(th.Shape[i])
	}
	elemSize := jobgraph.ElemSize(jobgraph.DType(th.Dtype))
	need := wire.TensorHeaderSize + nelem*elemSize
	if need > int(hdr.Size) {
		return nil
	}

	dataOff := tensorOff + wire.TensorHeaderSize
	return h.data[dataOff : dataOff+nelem*elemSize]
}

// Stats is the snapshot returned by Stats.
type Stats struct {
	TotalBlocks int
	FreeBlocks  int
}

// Stats returns a point-in-time snapshot, satisfying the invariant
// free_blocks + Σ blocks per allocated blob == total_blocks.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{TotalBlocks: h.totalBlocks, FreeBlocks: h.freeBlocks}
}
