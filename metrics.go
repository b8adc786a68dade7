package zenedge

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the step-duration histogram buckets in
// microseconds. Buckets cover from 10µs to 10s with logarithmic
// spacing, matching the flight recorder's µs-resolution timestamps.
var LatencyBuckets = []uint64{
	10,         // 10µs
	100,        // 100µs
	1_000,      // 1ms
	10_000,     // 10ms
	100_000,    // 100ms
	1_000_000,  // 1s
	10_000_000, // 10s
}

const numLatencyBuckets = 7

// Metrics tracks kernel-wide operational statistics across jobs run
// through a Kernel.
type Metrics struct {
	JobsSubmitted atomic.Uint64
	JobsCompleted atomic.Uint64
	JobsAborted   atomic.Uint64 // halted early due to SAFE_MODE

	StepsCompleted atomic.Uint64
	StepsTimedOut  atomic.Uint64

	CPUViolations atomic.Uint64
	MemViolations atomic.Uint64
	AllocFailures atomic.Uint64

	TotalStepUS atomic.Uint64
	StepCount   atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordJobSubmit records a job entering the scheduler.
func (m *Metrics) RecordJobSubmit() {
	m.JobsSubmitted.Add(1)
}

// RecordJobComplete records a job's terminal disposition.
func (m *Metrics) RecordJobComplete(aborted bool) {
	m.JobsCompleted.Add(1)
	if aborted {
		m.JobsAborted.Add(1)
	}
}

// RecordStep records one step's outcome and duration.
func (m *Metrics) RecordStep(durationUS uint64, timedOut bool) {
	if timedOut {
		m.StepsTimedOut.Add(1)
		return
	}
	m.StepsCompleted.Add(1)
	m.TotalStepUS.Add(durationUS)
	m.StepCount.Add(1)
	m.recordLatency(durationUS)
}

// RecordViolation records a contract budget violation.
func (m *Metrics) RecordViolation(cpu bool) {
	if cpu {
		m.CPUViolations.Add(1)
	} else {
		m.MemViolations.Add(1)
	}
}

// RecordAllocFailure records a PMM/contract allocation denial.
func (m *Metrics) RecordAllocFailure() {
	m.AllocFailures.Add(1)
}

func (m *Metrics) recordLatency(durationUS uint64) {
	for i, bucket := range LatencyBuckets {
		if durationUS <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the kernel as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time view of Metrics.
type MetricsSnapshot struct {
	JobsSubmitted uint64
	JobsCompleted uint64
	JobsAborted   uint64

	StepsCompleted uint64
	StepsTimedOut  uint64

	CPUViolations uint64
	MemViolations uint64
	AllocFailures uint64

	AvgStepUS uint64
	UptimeNs  uint64

	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot creates a point-in-time snapshot of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		JobsSubmitted:  m.JobsSubmitted.Load(),
		JobsCompleted:  m.JobsCompleted.Load(),
		JobsAborted:    m.JobsAborted.Load(),
		StepsCompleted: m.StepsCompleted.Load(),
		StepsTimedOut:  m.StepsTimedOut.Load(),
		CPUViolations:  m.CPUViolations.Load(),
		MemViolations:  m.MemViolations.Load(),
		AllocFailures:  m.AllocFailures.Load(),
	}

	totalUS := m.TotalStepUS.Load()
	stepCount := m.StepCount.Load()
	if stepCount > 0 {
		snap.AvgStepUS = totalUS / stepCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	return snap
}

// Reset resets all counters (useful for testing).
func (m *Metrics) Reset() {
	m.JobsSubmitted.Store(0)
	m.JobsCompleted.Store(0)
	m.JobsAborted.Store(0)
	m.StepsCompleted.Store(0)
	m.StepsTimedOut.Store(0)
	m.CPUViolations.Store(0)
	m.MemViolations.Store(0)
	m.AllocFailures.Store(0)
	m.TotalStepUS.Store(0)
	m.StepCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection across a Kernel's
// runs (spec.md §4.2's flight recorder is the authoritative event
// log; Observer is a cheap, lossy side channel for live dashboards).
type Observer interface {
	ObserveJobSubmit()
	ObserveJobComplete(aborted bool)
	ObserveStep(durationUS uint64, timedOut bool)
	ObserveViolation(cpu bool)
	ObserveAllocFailure()
}

// NoOpObserver is a no-op Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveJobSubmit()                     {}
func (NoOpObserver) ObserveJobComplete(bool)                {}
func (NoOpObserver) ObserveStep(uint64, bool)               {}
func (NoOpObserver) ObserveViolation(bool)                  {}
func (NoOpObserver) ObserveAllocFailure()                   {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveJobSubmit() { o.metrics.RecordJobSubmit() }

func (o *MetricsObserver) ObserveJobComplete(aborted bool) { o.metrics.RecordJobComplete(aborted) }

func (o *MetricsObserver) ObserveStep(durationUS uint64, timedOut bool) {
	o.metrics.RecordStep(durationUS, timedOut)
}

func (o *MetricsObserver) ObserveViolation(cpu bool) { o.metrics.RecordViolation(cpu) }

func (o *MetricsObserver) ObserveAllocFailure() { o.metrics.RecordAllocFailure() }

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
