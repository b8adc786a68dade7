// Package pmm implements the physical memory manager (spec.md §4.3): a
// bitmap over 4 KiB frames parsed from a bootloader memory map, split
// into two simulated NUMA nodes with per-node free counts and
// contiguous multi-page search.
package pmm

import (
	"sync"

	"github.com/zen-systems/zenedge/internal/constants"
	"github.com/zen-systems/zenedge/internal/platform"
	"github.com/zen-systems/zenedge/internal/recorder"
	"github.com/zen-systems/zenedge/internal/wire"
)

// Stats is the snapshot returned by Stats.
type Stats struct {
	TotalFrames int
	FreePages   int
	UsedPages   int
	NodeFree    [2]int
	Regions     int
}

// Manager is a bitmap-backed physical memory manager. A set bit means
// the frame is used; a clear bit means it is free. Not safe without
// the manager's own lock: every exported method takes it.
type Manager struct {
	mu sync.Mutex

	rec *recorder.Recorder

	bitmap      []uint64
	reserved    []uint64
	totalFrames int

	freePages int
	nodeFree  [2]int

	usableStart int
	boundaryPFN int

	regions int
}

// New constructs a Manager and immediately runs Init against mmap.
func New(rec *recorder.Recorder, mmap []platform.MemRegion) *Manager {
	m := &Manager{rec: rec}
	m.Init(mmap)
	return m
}

// Init sets every frame to used, then clears frames covered by each
// available region (page-aligned inward so partial edge pages stay
// reserved), reserves low memory and the kernel image, and splits the
// remaining usable range in half across the two NUMA nodes
// (spec.md §4.3).
func (m *Manager) Init(mmap []platform.MemRegion) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var maxAddr uint64
	for _, r := range mmap {
		if end := r.Base + r.Length; end > maxAddr {
			maxAddr = end
		}
	}
	m.totalFrames = int(maxAddr / constants.PageSize)
	m.bitmap = make([]uint64, (m.totalFrames+63)/64)
	m.reserved = make([]uint64, (m.totalFrames+63)/64)
	for i := range m.bitmap {
		m.bitmap[i] = ^uint64(0) // all frames used
	}
	m.freePages = 0
	m.nodeFree = [2]int{}
	m.regions = len(mmap)

	for _, r := range mmap {
		if r.Type != platform.RegionAvailable {
			continue
		}
		startPFN := (r.Base + constants.PageSize - 1) / constants.PageSize
		endPFN := (r.Base + r.Length) / constants.PageSize
		for pfn := startPFN; pfn < endPFN; pfn++ {
			if m.clearBit(int(pfn)) {
				m.freePages++
			}
		}
	}

	m.reserveRangeLocked(0, constants.LowMemoryReserveBytes)
	m.reserveRangeLocked(constants.LowMemoryReserveBytes, constants.KernelImageReserveBytes)

	m.usableStart = int((constants.LowMemoryReserveBytes + constants.KernelImageReserveBytes) / constants.PageSize)
	m.boundaryPFN = m.usableStart + m.freePages/2

	for pfn := 0; pfn < m.totalFrames; pfn++ {
		if m.testBit(pfn) {
			continue
		}
		m.nodeFree[m.nodeOf(pfn)]++
	}
}

func (m *Manager) nodeOf(pfn int) int {
	if pfn < m.boundaryPFN {
		return constants.NodeLocal
	}
	return constants.NodeRemote
}

// testBit reports whether pfn is marked used.
func (m *Manager) testBit(pfn int) bool {
	return m.bitmap[pfn/64]&(1<<(uint(pfn)%64)) != 0
}

// setBit marks pfn used, returning true if it was previously free.
func (m *Manager) setBit(pfn int) bool {
	word, bit := pfn/64, uint(pfn)%64
	if m.bitmap[word]&(1<<bit) != 0 {
		return false
	}
	m.bitmap[word] |= 1 << bit
	return true
}

// clearBit marks pfn free, returning true if it was previously used.
func (m *Manager) clearBit(pfn int) bool {
	word, bit := pfn/64, uint(pfn)%64
	if m.bitmap[word]&(1<<bit) == 0 {
		return false
	}
	m.bitmap[word] &^= 1 << bit
	return true
}

// testReserved reports whether pfn was ever marked reserved by
// reserveRangeLocked, as distinct from merely being allocated.
func (m *Manager) testReserved(pfn int) bool {
	return m.reserved[pfn/64]&(1<<(uint(pfn)%64)) != 0
}

// setReserved marks pfn reserved.
func (m *Manager) setReserved(pfn int) {
	word, bit := pfn/64, uint(pfn)%64
	m.reserved[word] |= 1 << bit
}

func (m *Manager) nodeRange(node int) (lo, hi int) {
	if node == constants.NodeLocal {
		return 0, m.boundaryPFN
	}
	return m.boundaryPFN, m.totalFrames
}

// findFirstFit scans [lo, hi) for the first clear bit.
func (m *Manager) findFirstFit(lo, hi int) (int, bool) {
	for pfn := lo; pfn < hi; pfn++ {
		if !m.testBit(pfn) {
			return pfn, true
		}
	}
	return 0, false
}

// findRun scans [lo, hi) for count contiguous clear bits, skipping
// past a collision before restarting the run.
func (m *Manager) findRun(lo, hi, count int) (int, bool) {
	pfn := lo
	for pfn+count <= hi {
		run := 0
		for run < count && !m.testBit(pfn+run) {
			run++
		}
		if run == count {
			return pfn, true
		}
		pfn += run + 1
	}
	return 0, false
}

// resolveOrder returns the (first, second) nodes to try for nodePref,
// logging MEM_NODE_UNSUPPORTED if nodePref is neither a known node nor
// NodeAny.
func (m *Manager) resolveOrder(nodePref int) (first, second int) {
	switch nodePref {
	case constants.NodeLocal:
		return constants.NodeLocal, constants.NodeRemote
	case constants.NodeRemote:
		return constants.NodeRemote, constants.NodeLocal
	case constants.NodeAny:
		return constants.NodeLocal, constants.NodeRemote
	default:
		m.rec.Log(wire.EventMemNodeUnsupported, 0, 0, uint32(nodePref))
		return constants.NodeLocal, constants.NodeRemote
	}
}

// AllocPage allocates one frame, preferring nodePref, falling back to
// the other node and logging MEM_LOCALITY_MISS on landing there.
// Returns 0 on total exhaustion, after logging MEM_ALLOC_FAIL.
func (m *Manager) AllocPage(nodePref int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if nodePref != constants.NodeLocal && nodePref != constants.NodeRemote && nodePref != constants.NodeAny {
		m.rec.Log(wire.EventMemNodeUnsupported, 0, 0, uint32(nodePref))
		nodePref = constants.NodeLocal
	}
	first, second := m.resolveOrder(nodePref)

	lo, hi := m.nodeRange(first)
	if pfn, ok := m.findFirstFit(lo, hi); ok {
		m.commitAlloc(pfn, first)
		return uint64(pfn) * constants.PageSize
	}

	lo, hi = m.nodeRange(second)
	if pfn, ok := m.findFirstFit(lo, hi); ok {
		m.commitAlloc(pfn, second)
		m.rec.Log(wire.EventMemLocalityMiss, 0, 0, uint32(second))
		return uint64(pfn) * constants.PageSize
	}

	m.rec.Log(wire.EventMemAllocFail, 0, 0, 0)
	return 0
}

// AllocPages allocates count contiguous frames within one node's PFN
// range, falling back to the other node on failure. AllocPages(1, n)
// behaves identically to AllocPage(n).
func (m *Manager) AllocPages(count int, nodePref int) uint64 {
	if count <= 1 {
		return m.AllocPage(nodePref)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if nodePref != constants.NodeLocal && nodePref != constants.NodeRemote && nodePref != constants.NodeAny {
		m.rec.Log(wire.EventMemNodeUnsupported, 0, 0, uint32(nodePref))
		nodePref = constants.NodeLocal
	}
	first, second := m.resolveOrder(nodePref)

	lo, hi := m.nodeRange(first)
	if pfn, ok := m.findRun(lo, hi, count); ok {
		m.commitAllocRun(pfn, count, first)
		return uint64(pfn) * constants.PageSize
	}

	lo, hi = m.nodeRange(second)
	if pfn, ok := m.findRun(lo, hi, count); ok {
		m.commitAllocRun(pfn, count, second)
		m.rec.Log(wire.EventMemLocalityMiss, 0, 0, uint32(second))
		return uint64(pfn) * constants.PageSize
	}

	m.rec.Log(wire.EventMemAllocFail, 0, 0, uint32(count))
	return 0
}

func (m *Manager) commitAlloc(pfn, node int) {
	m.setBit(pfn)
	m.freePages--
	m.nodeFree[node]--
	m.rec.Log(wire.EventMemAlloc, 0, 0, 1)
}

func (m *Manager) commitAllocRun(pfn, count, node int) {
	for i := 0; i < count; i++ {
		m.setBit(pfn + i)
	}
	m.freePages -= count
	m.nodeFree[node] -= count
	m.rec.Log(wire.EventMemAlloc, 0, 0, uint32(count))
}

// FreePage releases the frame at addr. A double-free, an out-of-range
// address, or a reserved-but-never-allocated frame logs a warning and
// returns without mutating state (spec.md:106, "freeing a reserved
// page is a no-op warning").
func (m *Manager) FreePage(addr uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pfn := int(addr / constants.PageSize)
	if pfn < 0 || pfn >= m.totalFrames {
		m.rec.Log(wire.EventMemAllocFail, 0, 0, 0)
		return
	}
	if m.testReserved(pfn) {
		m.rec.Log(wire.EventMemAllocFail, 0, 0, 0)
		return
	}
	if !m.clearBit(pfn) {
		m.rec.Log(wire.EventMemAllocFail, 0, 0, 0)
		return
	}
	m.freePages++
	m.nodeFree[m.nodeOf(pfn)]++
	m.rec.Log(wire.EventMemFree, 0, 0, 1)
}

// ReserveRange page-aligns [base, base+length) outward and marks the
// covered frames used. Idempotent: re-reserving an already-reserved
// range mutates nothing further.
func (m *Manager) ReserveRange(base, length uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserveRangeLocked(base, length)
}

func (m *Manager) reserveRangeLocked(base, length uint64) {
	startPFN := base / constants.PageSize
	endPFN := (base + length + constants.PageSize - 1) / constants.PageSize
	for pfn := startPFN; pfn < endPFN && int(pfn) < m.totalFrames; pfn++ {
		m.setReserved(int(pfn))
		if m.setBit(int(pfn)) {
			if m.freePages > 0 {
				m.freePages--
			}
		}
	}
}

// AddrToNode returns the NUMA node containing addr.
func (m *Manager) AddrToNode(addr uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodeOf(int(addr / constants.PageSize))
}

// Stats returns a point-in-time snapshot of manager state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		TotalFrames: m.totalFrames,
		FreePages:   m.freePages,
		UsedPages:   m.totalFrames - m.freePages,
		NodeFree:    m.nodeFree,
		Regions:     m.regions,
	}
}

// BoundaryPFN returns the PFN splitting node 0 from node 1, fixed at
// Init.
func (m *Manager) BoundaryPFN() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boundaryPFN
}
