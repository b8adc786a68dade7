package zenedge

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.JobsSubmitted != 0 {
		t.Errorf("Expected 0 initial jobs, got %d", snap.JobsSubmitted)
	}

	m.RecordJobSubmit()
	m.RecordStep(100, false)
	m.RecordStep(200, false)
	m.RecordStep(0, true) // timed out
	m.RecordJobComplete(false)

	snap = m.Snapshot()
	if snap.JobsSubmitted != 1 {
		t.Errorf("Expected 1 job submitted, got %d", snap.JobsSubmitted)
	}
	if snap.JobsCompleted != 1 {
		t.Errorf("Expected 1 job completed, got %d", snap.JobsCompleted)
	}
	if snap.StepsCompleted != 2 {
		t.Errorf("Expected 2 steps completed, got %d", snap.StepsCompleted)
	}
	if snap.StepsTimedOut != 1 {
		t.Errorf("Expected 1 step timed out, got %d", snap.StepsTimedOut)
	}
	if snap.AvgStepUS != 150 {
		t.Errorf("Expected avg step 150us, got %d", snap.AvgStepUS)
	}
}

func TestMetricsViolationsAndAllocFailures(t *testing.T) {
	m := NewMetrics()

	m.RecordViolation(true)
	m.RecordViolation(true)
	m.RecordViolation(false)
	m.RecordAllocFailure()

	snap := m.Snapshot()
	if snap.CPUViolations != 2 {
		t.Errorf("Expected 2 cpu violations, got %d", snap.CPUViolations)
	}
	if snap.MemViolations != 1 {
		t.Errorf("Expected 1 mem violation, got %d", snap.MemViolations)
	}
	if snap.AllocFailures != 1 {
		t.Errorf("Expected 1 alloc failure, got %d", snap.AllocFailures)
	}
}

func TestMetricsJobAborted(t *testing.T) {
	m := NewMetrics()
	m.RecordJobComplete(true)

	snap := m.Snapshot()
	if snap.JobsCompleted != 1 {
		t.Errorf("Expected 1 job completed, got %d", snap.JobsCompleted)
	}
	if snap.JobsAborted != 1 {
		t.Errorf("Expected 1 job aborted, got %d", snap.JobsAborted)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+5*1_000_000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordJobSubmit()
	m.RecordStep(100, false)

	snap := m.Snapshot()
	if snap.JobsSubmitted == 0 {
		t.Error("Expected some activity before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.JobsSubmitted != 0 {
		t.Errorf("Expected 0 jobs after reset, got %d", snap.JobsSubmitted)
	}
	if snap.StepsCompleted != 0 {
		t.Errorf("Expected 0 steps after reset, got %d", snap.StepsCompleted)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveJobSubmit()
	observer.ObserveJobComplete(false)
	observer.ObserveStep(100, false)
	observer.ObserveViolation(true)
	observer.ObserveAllocFailure()

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveJobSubmit()
	metricsObserver.ObserveStep(500, false)
	metricsObserver.ObserveJobComplete(false)

	snap := m.Snapshot()
	if snap.JobsSubmitted != 1 {
		t.Errorf("Expected 1 job submitted from observer, got %d", snap.JobsSubmitted)
	}
	if snap.StepsCompleted != 1 {
		t.Errorf("Expected 1 step completed from observer, got %d", snap.StepsCompleted)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordStep(50, false) // 50us
	}
	for i := 0; i < 49; i++ {
		m.RecordStep(5_000, false) // 5ms
	}
	m.RecordStep(50_000, false) // 50ms

	snap := m.Snapshot()
	if snap.StepsCompleted != 100 {
		t.Errorf("Expected 100 steps completed, got %d", snap.StepsCompleted)
	}

	totalInBuckets := uint64(0)
	for i := 0; i < len(snap.LatencyHistogram); i++ {
		totalInBuckets += snap.LatencyHistogram[i]
	}
	if totalInBuckets == 0 {
		t.Error("Expected histogram buckets to be populated")
	}
}
