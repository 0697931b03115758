// Package pme is the ParallelME core: a task/kernel/buffer object model
// scheduled across heterogeneous compute devices and executed by one
// Worker thread per device. Runtime is the top-level orchestrator.
package pme

import (
	"time"

	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/errs"
	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/internal/logging"
	"github.com/parallelme/pme/internal/worker"
	"github.com/parallelme/pme/scheduler"
	"github.com/parallelme/pme/task"
)

// Runtime loads the device-compute library, enumerates devices,
// constructs a Scheduler and one Worker per device, and owns the whole
// object graph's teardown.
type Runtime struct {
	adapter   compute.Adapter
	devices   []*device.Device
	scheduler scheduler.Scheduler
	workers   []*worker.Worker
	metrics   *Metrics
}

// NewRuntime constructs a Runtime per params. The adapter must load
// before anything else happens; a failed Load returns
// RuntimeConstructionError and no Runtime.
func NewRuntime(params RuntimeParams) (*Runtime, error) {
	adapter := params.Adapter
	if adapter == nil {
		adapter = compute.NewSimulated()
	}

	if ok := adapter.Load(); !ok {
		return nil, errs.NewError("LOAD", errs.RuntimeConstructionError, "device-compute library load failed")
	}

	handles, res := adapter.Enumerate()
	if !res.Ok() {
		adapter.Unload()
		return nil, errs.NewErrorWithResult("ENUMERATE", errs.RuntimeConstructionError, int(res))
	}

	devices := make([]*device.Device, 0, len(handles))
	for i, h := range handles {
		dev, err := device.New(i, adapter, h)
		if err != nil {
			for _, d := range devices {
				d.Close()
			}
			adapter.Unload()
			return nil, errs.WrapError("RUNTIME_CONSTRUCTION", err)
		}
		devices = append(devices, dev)
	}

	var sched scheduler.Scheduler
	switch params.Scheduler {
	case SchedulerHEFT:
		sched = scheduler.NewHEFT(devices)
	default:
		sched = scheduler.NewFCFS()
	}

	metrics := NewMetrics()
	observer := params.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}
	// Buffers created inside a Task's Configure/Finish callback pull their
	// Observer from their owning Device, so every Buffer.CopyFrom/CopyTo
	// call on this Runtime reports real traffic to Metrics.
	for _, dev := range devices {
		dev.SetObserver(observer)
	}

	workers := make([]*worker.Worker, 0, len(devices))
	for _, dev := range devices {
		w := worker.New(dev, observer, params.CPUAffinity)
		if err := w.Run(sched, params.HostRuntime); err != nil {
			for _, running := range workers {
				running.Close()
			}
			for _, d := range devices {
				d.Close()
			}
			adapter.Unload()
			return nil, errs.WrapError("RUNTIME_CONSTRUCTION", err)
		}
		workers = append(workers, w)
	}

	logging.Default().Info("runtime constructed", "devices", len(devices))

	return &Runtime{
		adapter:   adapter,
		devices:   devices,
		scheduler: sched,
		workers:   workers,
		metrics:   metrics,
	}, nil
}

// Devices returns the Runtime's enumerated devices in stable id order.
func (r *Runtime) Devices() []*device.Device { return r.devices }

// Metrics returns the Runtime's built-in Metrics object.
func (r *Runtime) Metrics() *Metrics { return r.metrics }

// SubmitTask pushes task into the Scheduler and wakes every Worker.
// Errors raised while a Task executes on a Worker thread are not routed
// back to the submitter; the Worker logs them and moves on.
func (r *Runtime) SubmitTask(t *task.Task) {
	r.scheduler.Push(t)
	for _, w := range r.workers {
		w.WakeUp()
	}
}

// Finish blocks until the scheduler is drained and every Worker has
// returned to idle, i.e. every submitted task has run its finish-callback
// to completion. The drain check is a millisecond poll; submission is
// bursty enough that the hot loop is short-lived in practice.
func (r *Runtime) Finish() {
	for r.scheduler.HasWork() {
		time.Sleep(time.Millisecond)
	}
	for _, w := range r.workers {
		w.Finish()
	}
}

// Close unloads the compute library and releases every Device. Workers
// are signaled to exit but Close does not itself call Finish; callers
// should call Finish first if any tasks are still outstanding.
func (r *Runtime) Close() error {
	for _, w := range r.workers {
		w.Close()
	}
	for _, d := range r.devices {
		d.Close()
	}
	r.adapter.Unload()
	r.metrics.Stop()
	return nil
}
