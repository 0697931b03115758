package pme

import (
	"sync/atomic"
	"time"

	"github.com/parallelme/pme/obs"
)

// LatencyBuckets defines the kernel-launch latency histogram buckets in
// nanoseconds. Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a Runtime.
type Metrics struct {
	// Task/kernel counters
	TasksExecuted   atomic.Uint64 // Total tasks whose finish-callback completed
	KernelsLaunched atomic.Uint64 // Total enqueueNDRange calls
	TaskErrors      atomic.Uint64 // Kernel launches whose enqueue or finish failed

	// Buffer copy counters
	BufferCopyInBytes  atomic.Uint64 // Total bytes moved by Buffer.copyFrom
	BufferCopyOutBytes atomic.Uint64 // Total bytes moved by Buffer.copyTo
	BufferCopyErrors   atomic.Uint64 // copyFrom/copyTo failures

	// Performance tracking
	TotalKernelLatencyNs atomic.Uint64 // Cumulative kernel-launch-to-finish latency
	KernelCount          atomic.Uint64 // Total kernels (for average latency)

	// Latency histogram buckets (cumulative counts).
	// Each bucket[i] contains the count of kernel launches with latency <= LatencyBuckets[i].
	LatencyHistogram [numLatencyBuckets]atomic.Uint64

	// Runtime lifecycle
	StartTime atomic.Int64 // Runtime construction timestamp (UnixNano)
	StopTime  atomic.Int64 // Runtime teardown timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordKernelLaunch records one enqueueNDRange-to-finish round trip.
func (m *Metrics) RecordKernelLaunch(latencyNs uint64, success bool) {
	m.KernelsLaunched.Add(1)
	if !success {
		m.TaskErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordBufferCopyIn records a Buffer.copyFrom call.
func (m *Metrics) RecordBufferCopyIn(bytes uint64, success bool) {
	if success {
		m.BufferCopyInBytes.Add(bytes)
	} else {
		m.BufferCopyErrors.Add(1)
	}
}

// RecordBufferCopyOut records a Buffer.copyTo call.
func (m *Metrics) RecordBufferCopyOut(bytes uint64, success bool) {
	if success {
		m.BufferCopyOutBytes.Add(bytes)
	} else {
		m.BufferCopyErrors.Add(1)
	}
}

// RecordTaskComplete records a Task whose finish-callback returned.
func (m *Metrics) RecordTaskComplete() {
	m.TasksExecuted.Add(1)
}

// recordLatency records kernel latency and updates the histogram.
func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalKernelLatencyNs.Add(latencyNs)
	m.KernelCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyHistogram[i].Add(1)
		}
	}
}

// Stop marks the Runtime as torn down.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	TasksExecuted   uint64
	KernelsLaunched uint64
	TaskErrors      uint64

	BufferCopyInBytes  uint64
	BufferCopyOutBytes uint64
	BufferCopyErrors   uint64

	AvgKernelLatencyNs uint64
	UptimeNs           uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	KernelLaunchRate float64 // kernels per second
	ErrorRate        float64 // percentage of kernel launches that failed
}

// Snapshot creates a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		TasksExecuted:      m.TasksExecuted.Load(),
		KernelsLaunched:    m.KernelsLaunched.Load(),
		TaskErrors:         m.TaskErrors.Load(),
		BufferCopyInBytes:  m.BufferCopyInBytes.Load(),
		BufferCopyOutBytes: m.BufferCopyOutBytes.Load(),
		BufferCopyErrors:   m.BufferCopyErrors.Load(),
	}

	totalLatencyNs := m.TotalKernelLatencyNs.Load()
	kernelCount := m.KernelCount.Load()
	if kernelCount > 0 {
		snap.AvgKernelLatencyNs = totalLatencyNs / kernelCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.KernelLaunchRate = float64(snap.KernelsLaunched) / uptimeSeconds
	}

	if snap.KernelsLaunched > 0 {
		snap.ErrorRate = float64(snap.TaskErrors) / float64(snap.KernelsLaunched) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyHistogram[i].Load()
	}

	if kernelCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalKernels := m.KernelCount.Load()
	if totalKernels == 0 {
		return 0
	}

	targetCount := uint64(float64(totalKernels) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyHistogram[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyHistogram[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.TasksExecuted.Store(0)
	m.KernelsLaunched.Store(0)
	m.TaskErrors.Store(0)
	m.BufferCopyInBytes.Store(0)
	m.BufferCopyOutBytes.Store(0)
	m.BufferCopyErrors.Store(0)
	m.TotalKernelLatencyNs.Store(0)
	m.KernelCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyHistogram[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer and NoOpObserver are re-exported from package obs so callers
// outside this module don't need a second import for the same contract
// internal/worker reports through.
type Observer = obs.Observer

type NoOpObserver = obs.NoOpObserver

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveKernelLaunch(latencyNs uint64, success bool) {
	o.metrics.RecordKernelLaunch(latencyNs, success)
}

func (o *MetricsObserver) ObserveBufferCopy(bytes uint64, in bool, success bool) {
	if in {
		o.metrics.RecordBufferCopyIn(bytes, success)
	} else {
		o.metrics.RecordBufferCopyOut(bytes, success)
	}
}

func (o *MetricsObserver) ObserveTaskComplete() {
	o.metrics.RecordTaskComplete()
}

// Compile-time interface checks.
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
