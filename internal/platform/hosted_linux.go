//go:build linux

package platform

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Hosted is a Linux-hosted Platform used by the cmd/zenedge-run demo
// harness. It backs the shared-memory region with a real anonymous
// mmap (golang.org/x/sys/unix), matching the teacher's own use of
// MAP_SHARED|MAP_ANONYMOUS for kernel-adjacent buffers it cannot get
// from a real device (internal/queue/runner.go's mmapQueues), and
// delivers IRQ notifications through an eventfd instead of a busy
// poll, standing in for a hardware interrupt dispatcher.
type Hosted struct {
	mu        sync.Mutex
	sharedMem []byte
	memMap    []MemRegion
	irqs      map[int]func()
	eventFD   int
	done      chan struct{}
}

// NewHosted mmaps a shared-memory region of the given size (rounded
// up by the kernel to a page multiple) and opens an eventfd for IRQ
// delivery.
func NewHosted(sharedMemSize int, memMap []MemRegion) (*Hosted, error) {
	data, err := unix.Mmap(-1, 0, sharedMemSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("platform: mmap shared region: %w", err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("platform: eventfd: %w", err)
	}

	h := &Hosted{
		sharedMem: data,
		memMap:    memMap,
		irqs:      make(map[int]func()),
		eventFD:   efd,
		done:      make(chan struct{}),
	}
	go h.irqLoop()
	return h, nil
}

// Close unmaps the shared region and closes the eventfd.
func (h *Hosted) Close() error {
	close(h.done)
	unix.Close(h.eventFD)
	return unix.Munmap(h.sharedMem)
}

// NowCycles treats one nanosecond as one cycle; callers divide by
// CyclesPerUS (1000) to recover microseconds, matching
// DefaultCyclesPerUS's documented fallback.
func (h *Hosted) NowCycles() uint64 {
	return uint64(time.Now().UnixNano())
}

// SleepMS suspends the calling goroutine for n milliseconds.
func (h *Hosted) SleepMS(n uint64) {
	time.Sleep(time.Duration(n) * time.Millisecond)
}

// BusyWaitTicks spins until at least ticks nanoseconds have elapsed.
func (h *Hosted) BusyWaitTicks(ticks uint64) {
	deadline := h.NowCycles() + ticks
	for h.NowCycles() < deadline {
	}
}

// RegisterIRQ records handler under vector. NotifyIRQ wakes the
// background irqLoop, which then invokes every registered handler —
// the doorbell's PENDING flag distinguishes which ring actually needs
// draining (spec.md §4.6).
func (h *Hosted) RegisterIRQ(vector int, handler func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.irqs[vector] = handler
}

// NotifyIRQ signals the eventfd, waking irqLoop to run registered
// handlers. Called by internal/ipc whenever a doorbell write finds
// IRQ_ENABLED set on an idle ring.
func (h *Hosted) NotifyIRQ() error {
	buf := make([]byte, 8)
	buf[0] = 1
	_, err := unix.Write(h.eventFD, buf)
	return err
}

func (h *Hosted) irqLoop() {
	buf := make([]byte, 8)
	for {
		select {
		case <-h.done:
			return
		default:
		}
		_, err := unix.Read(h.eventFD, buf)
		if err != nil {
			time.Sleep(time.Millisecond)
			continue
		}
		h.mu.Lock()
		handlers := make([]func(), 0, len(h.irqs))
		for _, fn := range h.irqs {
			handlers = append(handlers, fn)
		}
		h.mu.Unlock()
		for _, fn := range handlers {
			fn()
		}
	}
}

// SharedMemBase returns the mmap'd shared-memory region.
func (h *Hosted) SharedMemBase() []byte {
	return h.sharedMem
}

// MemMap returns the configured bootloader memory map.
func (h *Hosted) MemMap() []MemRegion {
	return h.memMap
}

// WriteConsole writes to the process's standard output.
func (h *Hosted) WriteConsole(s string) {
	fmt.Print(s)
}

var _ Platform = (*Hosted)(nil)
