package platform

import "sync"

// Sim is a deterministic, logically-clocked Platform used by tests and
// by internal/accel's in-process accelerator. Time advances only when
// Advance is called or when an operation with an explicit cost runs;
// there is no wall-clock dependency, so tests are reproducible
// (spec.md Design Notes §9: "Supply a deterministic test platform
// that advances time logically").
type Sim struct {
	mu          sync.Mutex
	cycles      uint64
	cyclesPerUS uint64
	sharedMem   []byte
	memMap      []MemRegion
	irqs        map[int]func()
	console     []byte
}

// SimOption configures a Sim platform at construction.
type SimOption func(*Sim)

// WithMemMap sets the bootloader memory map the PMM will consume.
func WithMemMap(regions []MemRegion) SimOption {
	return func(s *Sim) { s.memMap = regions }
}

// WithSharedMemSize allocates a shared-memory region of the given size
// (must be at least constants.MinSharedRegionSize for the IPC
// transport and blob heap to fit).
func WithSharedMemSize(size int) SimOption {
	return func(s *Sim) { s.sharedMem = make([]byte, size) }
}

// WithCyclesPerUS overrides the simulated clock's calibration.
func WithCyclesPerUS(c uint64) SimOption {
	return func(s *Sim) { s.cyclesPerUS = c }
}

// NewSim constructs a Sim platform with a 2 MiB default shared memory
// region and a calibration of 1000 cycles/µs.
func NewSim(opts ...SimOption) *Sim {
	s := &Sim{
		cyclesPerUS: DefaultCyclesPerUS,
		sharedMem:   make([]byte, 2<<20),
		irqs:        make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NowCycles returns the current simulated cycle count.
func (s *Sim) NowCycles() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

// Advance moves the simulated clock forward by the given number of
// microseconds, converting through the configured calibration.
func (s *Sim) Advance(us uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles += us * s.cyclesPerUS
}

// AdvanceCycles moves the simulated clock forward by raw cycles.
func (s *Sim) AdvanceCycles(cycles uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles += cycles
}

// SleepMS advances the simulated clock by n milliseconds; it never
// blocks the calling goroutine.
func (s *Sim) SleepMS(n uint64) {
	s.Advance(n * 1000)
}

// BusyWaitTicks advances the simulated clock by the given raw cycle
// count, simulating a busy-wait against the calibration timer.
func (s *Sim) BusyWaitTicks(ticks uint64) {
	s.AdvanceCycles(ticks)
}

// RegisterIRQ records handler under vector; FireIRQ invokes it.
func (s *Sim) RegisterIRQ(vector int, handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.irqs[vector] = handler
}

// FireIRQ invokes the handler registered for vector, if any. Called by
// internal/ipc to simulate the doorbell's interrupt notification.
func (s *Sim) FireIRQ(vector int) {
	s.mu.Lock()
	handler := s.irqs[vector]
	s.mu.Unlock()
	if handler != nil {
		handler()
	}
}

// SharedMemBase returns the simulated shared-memory region.
func (s *Sim) SharedMemBase() []byte {
	return s.sharedMem
}

// MemMap returns the configured bootloader memory map.
func (s *Sim) MemMap() []MemRegion {
	return s.memMap
}

// WriteConsole appends to an in-memory console buffer, readable back
// via ConsoleOutput for test assertions.
func (s *Sim) WriteConsole(str string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.console = append(s.console, str...)
}

// ConsoleOutput returns everything written via WriteConsole so far.
func (s *Sim) ConsoleOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.console)
}

var _ Platform = (*Sim)(nil)
