// Package worker runs one Worker per Device: a loop that pulls a Task
// from the Scheduler for its device, executes it, and sleeps on a
// condition variable when there is nothing to do. Each Worker pins its
// own OS thread and, for CPU devices, can pin to a configured CPU set.
package worker

import (
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/errs"
	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/internal/logging"
	"github.com/parallelme/pme/obs"
	"github.com/parallelme/pme/scheduler"
	"github.com/parallelme/pme/task"
)

// HostRuntimeToken is the opaque thread-to-host-language-runtime
// attachment. The core treats it as a handle with Attach/Detach
// operations; it is nil when no host-language runtime is in play.
type HostRuntimeToken interface {
	Attach() error
	Detach() error
}

// launchMu guards every EnqueueNDRange call across every device. Some
// vendor drivers are not reentrant across concurrent launches from
// different queues.
var launchMu sync.Mutex

// Worker is the host thread bound to one Device that executes assigned
// Tasks.
type Worker struct {
	dev         *device.Device
	scheduler   scheduler.Scheduler
	hostToken   HostRuntimeToken
	observer    obs.Observer
	cpuAffinity []int

	mu      sync.Mutex
	cond    *sync.Cond
	kill    bool
	running bool
	wake    bool // a WakeUp arrived since the last Pop; re-check before parking
	idle    bool // true only while genuinely parked in cond.Wait
}

// New constructs a Worker bound to dev. observer may be nil, in which
// case observations are dropped. cpuAffinity, if non-empty, pins the
// Worker's OS thread for CPU-type devices, round-robin over the
// configured CPU set.
func New(dev *device.Device, observer obs.Observer, cpuAffinity []int) *Worker {
	w := &Worker{dev: dev, observer: observer, cpuAffinity: cpuAffinity}
	w.cond = sync.NewCond(&w.mu)
	if w.observer == nil {
		w.observer = obs.NoOpObserver{}
	}
	return w
}

// Device returns the bound device.
func (w *Worker) Device() *device.Device { return w.dev }

// Run is idempotent: if already running, it returns immediately.
// Otherwise it detaches a goroutine pinned to its own OS thread that
// attaches to the host-language runtime (if one was provided), then loops
// pulling tasks from sched for this Worker's device.
func (w *Worker) Run(sched scheduler.Scheduler, hostToken HostRuntimeToken) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.scheduler = sched
	w.hostToken = hostToken
	w.mu.Unlock()

	started := make(chan error, 1)
	go w.loop(started)
	return <-started
}

func (w *Worker) loop(started chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger := logging.Default().With("device", w.dev.ID())

	if w.dev.TypeOf() == device.TypeCPU && len(w.cpuAffinity) > 0 {
		cpuIdx := w.cpuAffinity[w.dev.ID()%len(w.cpuAffinity)]
		var mask unix.CPUSet
		mask.Set(cpuIdx)
		if err := unix.SchedSetaffinity(0, &mask); err != nil {
			logger.Warn("failed to set CPU affinity", "cpu", cpuIdx, "err", err)
		} else {
			logger.Debug("set CPU affinity", "cpu", cpuIdx)
		}
	}

	if w.hostToken != nil {
		if err := w.hostToken.Attach(); err != nil {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			started <- errs.WrapError("HOST_RUNTIME_ATTACH", err)
			return
		}
	}
	started <- nil
	defer func() {
		if w.hostToken != nil {
			w.hostToken.Detach()
		}
	}()

	logger.Debug("worker loop started")

	for {
		t := w.scheduler.Pop(w.dev)
		if t != nil {
			if err := w.executeTask(t); err != nil {
				logger.Error("task execution failed", "err", err)
			}
			continue
		}

		w.mu.Lock()
		if w.kill {
			w.mu.Unlock()
			logger.Debug("worker loop exiting")
			return
		}
		// A submission may have landed between the failed Pop above and
		// taking the mutex here; its WakeUp broadcast had no waiter yet, so
		// parking now would miss it. The wake flag closes that window.
		if w.wake {
			w.wake = false
			w.mu.Unlock()
			continue
		}
		w.idle = true
		w.cond.Broadcast() // wake any Finish() callers waiting on idleness
		for !w.wake && !w.kill {
			w.cond.Wait()
		}
		w.wake = false
		w.idle = false
		w.mu.Unlock()
	}
}

// WakeUp signals the condition variable, rousing the Worker if it is idle.
// The wake sticks until the Worker's next scheduler check, so a signal
// arriving while the Worker is between Pop and parking is not lost.
func (w *Worker) WakeUp() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.wake = true
	w.cond.Broadcast()
}

// Finish blocks until the Worker is genuinely parked in cond.Wait, an
// explicit idle latch rather than a bare mutex-acquisition piggyback
// (acquiring the mutex alone would succeed mid-execution, between
// adapter calls). loop() broadcasts the moment it sets idle=true, just
// before parking, so a Finish() call already waiting on the condition
// wakes as soon as the Worker has nothing left to execute.
func (w *Worker) Finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.idle && !w.kill {
		w.cond.Wait()
	}
}

// Close sets the kill flag and wakes the Worker; it exits lazily on its
// next idle check.
func (w *Worker) Close() error {
	w.mu.Lock()
	w.kill = true
	w.cond.Broadcast()
	w.mu.Unlock()
	return nil
}

// executeTask runs task.Configure, launches every kernel in order with a
// blocking finish between launches so each kernel observes its
// predecessor's writes, then runs task.Finish.
func (w *Worker) executeTask(t *task.Task) error {
	if t.Configure != nil {
		if err := t.Configure(w.dev, t.KernelsByName()); err != nil {
			return errs.WrapError("TASK_CONFIGURE", err)
		}
	}

	for _, k := range t.Kernels() {
		offset, workSize := k.WorkRange()

		var queue compute.QueueHandle
		w.dev.ClQueue(func(q compute.QueueHandle) { queue = q })

		kernelHandle := k.HandleFor(w.dev.ID())

		start := time.Now()
		launchMu.Lock()
		res := w.dev.Adapter().EnqueueNDRange(queue, kernelHandle, offset, workSize)
		launchMu.Unlock()

		var finishRes compute.Result
		if res.Ok() {
			finishRes = w.dev.Adapter().Finish(queue)
		}
		success := res.Ok() && finishRes.Ok()
		w.observer.ObserveKernelLaunch(uint64(time.Since(start).Nanoseconds()), success)

		if !res.Ok() {
			return errs.NewDeviceErrorWithResult("ENQUEUE_NDRANGE", w.dev.ID(), errs.WorkerExecutionError, int(res))
		}
		if !finishRes.Ok() {
			return errs.NewDeviceErrorWithResult("FINISH", w.dev.ID(), errs.WorkerExecutionError, int(finishRes))
		}
	}

	if t.Finish != nil {
		if err := t.Finish(w.dev, t.KernelsByName()); err != nil {
			return errs.WrapError("TASK_FINISH", err)
		}
	}

	w.observer.ObserveTaskComplete()
	return nil
}
