package pme

import (
	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/internal/worker"
)

// SchedulerKind selects which scheduler implementation a Runtime
// constructs.
type SchedulerKind int

const (
	// SchedulerFCFS is the default: a single FIFO queue, forward-scanned
	// per Pop for device-type compatibility.
	SchedulerFCFS SchedulerKind = iota
	// SchedulerHEFT assigns each Task at push time to the device
	// minimizing projected completion time.
	SchedulerHEFT
)

// RuntimeParams configures Runtime construction: a plain struct with a
// defaults constructor, no flag or env parsing.
type RuntimeParams struct {
	// Scheduler selects the scheduling policy. Defaults to SchedulerFCFS.
	Scheduler SchedulerKind

	// Adapter is the DeviceCompute binding to use. Defaults to a fresh
	// compute.NewSimulated() adapter when nil, so a Runtime is usable in
	// tests without an OpenCL ICD present.
	Adapter compute.Adapter

	// HostRuntime is the opaque host-language-runtime attachment every
	// Worker thread attaches to on entry and detaches from on exit.
	// Nil when no host runtime is in play.
	HostRuntime worker.HostRuntimeToken

	// CPUAffinity lists OS CPU indices CPU-type Device Workers pin their
	// thread to, round-robin by device id. Empty disables pinning.
	CPUAffinity []int

	// Observer receives kernel-launch/buffer-copy/task-complete events
	// from every Worker and Device. Defaults to a live MetricsObserver
	// backed by the Runtime's own Metrics when nil, so Metrics().Snapshot()
	// reflects real traffic out of the box; pass a custom Observer (or
	// NoOpObserver) to opt out.
	Observer Observer
}

// DefaultParams returns the zero-config RuntimeParams: FCFS scheduling,
// a simulated adapter, no host-runtime attachment, no CPU pinning, and a
// nil Observer (so the Runtime reports to its own Metrics).
func DefaultParams() RuntimeParams {
	return RuntimeParams{
		Scheduler: SchedulerFCFS,
	}
}
