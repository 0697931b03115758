package pme

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.KernelsLaunched != 0 {
		t.Errorf("Expected 0 initial kernel launches, got %d", snap.KernelsLaunched)
	}

	m.RecordKernelLaunch(1_000_000, true) // 1ms, success
	m.RecordKernelLaunch(2_000_000, true) // 2ms, success
	m.RecordKernelLaunch(500_000, false)  // 0.5ms, failure

	snap = m.Snapshot()

	if snap.KernelsLaunched != 3 {
		t.Errorf("Expected 3 kernel launches, got %d", snap.KernelsLaunched)
	}
	if snap.TaskErrors != 1 {
		t.Errorf("Expected 1 task error, got %d", snap.TaskErrors)
	}

	expectedErrorRate := float64(1) / float64(3) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("Expected error rate ~%.1f%%, got %.1f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsBufferCopy(t *testing.T) {
	m := NewMetrics()

	m.RecordBufferCopyIn(16, true)
	m.RecordBufferCopyIn(8, false)
	m.RecordBufferCopyOut(16, true)

	snap := m.Snapshot()
	if snap.BufferCopyInBytes != 16 {
		t.Errorf("Expected 16 copy-in bytes, got %d", snap.BufferCopyInBytes)
	}
	if snap.BufferCopyOutBytes != 16 {
		t.Errorf("Expected 16 copy-out bytes, got %d", snap.BufferCopyOutBytes)
	}
	if snap.BufferCopyErrors != 1 {
		t.Errorf("Expected 1 buffer copy error, got %d", snap.BufferCopyErrors)
	}
}

func TestMetricsTaskComplete(t *testing.T) {
	m := NewMetrics()

	m.RecordTaskComplete()
	m.RecordTaskComplete()

	snap := m.Snapshot()
	if snap.TasksExecuted != 2 {
		t.Errorf("Expected 2 tasks executed, got %d", snap.TasksExecuted)
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics()

	m.RecordKernelLaunch(500, true)        // falls in 1us bucket
	m.RecordKernelLaunch(50_000, true)     // falls in 100us bucket
	m.RecordKernelLaunch(5_000_000, true)  // falls in 10ms bucket

	snap := m.Snapshot()

	// Cumulative buckets: the 1us bucket only contains the 500ns launch.
	if snap.LatencyHistogram[0] != 1 {
		t.Errorf("Expected 1 launch in the 1us bucket, got %d", snap.LatencyHistogram[0])
	}
	// The 100us bucket (index 2) must include both sub-100us launches.
	if snap.LatencyHistogram[2] != 2 {
		t.Errorf("Expected 2 launches <= 100us, got %d", snap.LatencyHistogram[2])
	}
	// The final bucket includes all three.
	if snap.LatencyHistogram[numLatencyBuckets-1] != 3 {
		t.Errorf("Expected 3 launches <= 10s, got %d", snap.LatencyHistogram[numLatencyBuckets-1])
	}
}

func TestMetricsAvgLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordKernelLaunch(1_000_000, true)
	m.RecordKernelLaunch(3_000_000, true)

	snap := m.Snapshot()
	if snap.AvgKernelLatencyNs != 2_000_000 {
		t.Errorf("Expected avg latency 2000000ns, got %d", snap.AvgKernelLatencyNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordKernelLaunch(1_000_000, true)
	m.RecordTaskComplete()
	m.RecordBufferCopyIn(16, true)

	m.Reset()
	snap := m.Snapshot()

	if snap.KernelsLaunched != 0 || snap.TasksExecuted != 0 || snap.BufferCopyInBytes != 0 {
		t.Error("Expected all counters to be zero after Reset")
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(time.Millisecond)
	m.Stop()

	snap := m.Snapshot()
	if snap.UptimeNs == 0 {
		t.Error("Expected non-zero uptime after Stop")
	}
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	var o Observer = obs
	o.ObserveKernelLaunch(1_000_000, true)
	o.ObserveBufferCopy(16, true, true)
	o.ObserveBufferCopy(16, false, true)
	o.ObserveTaskComplete()

	snap := m.Snapshot()
	if snap.KernelsLaunched != 1 {
		t.Errorf("Expected 1 kernel launch via observer, got %d", snap.KernelsLaunched)
	}
	if snap.BufferCopyInBytes != 16 || snap.BufferCopyOutBytes != 16 {
		t.Errorf("Expected 16 bytes each direction via observer, got in=%d out=%d",
			snap.BufferCopyInBytes, snap.BufferCopyOutBytes)
	}
	if snap.TasksExecuted != 1 {
		t.Errorf("Expected 1 task executed via observer, got %d", snap.TasksExecuted)
	}
}

func TestNoOpObserver(t *testing.T) {
	var o Observer = NoOpObserver{}
	// Must not panic.
	o.ObserveKernelLaunch(1, true)
	o.ObserveBufferCopy(1, true, true)
	o.ObserveTaskComplete()
}
