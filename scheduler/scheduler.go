// Package scheduler decides which Device pulls which Task. The Scheduler
// abstraction is a capability set {Push, Pop(device), HasWork} with two
// variants, FCFS and a HEFT-style heuristic.
package scheduler

import (
	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/task"
)

// Scheduler is the contract both FCFS and HEFT satisfy. Implementations
// never fail; they return "no task" rather than erroring.
type Scheduler interface {
	// Push takes exclusive ownership of t and enqueues it.
	Push(t *task.Task)

	// Pop returns a task assigned to dev, or nil if there is none for this
	// device right now.
	Pop(dev *device.Device) *task.Task

	// HasWork reports whether any task is still queued or assigned but
	// not yet popped.
	HasWork() bool
}

// compatible reports whether a Task's Hint permits running on a device of
// the given type: TargetGPU matches GPU and Accelerator devices, TargetCPU
// matches CPU devices.
func compatible(hint task.Hint, typ device.Type) bool {
	switch hint {
	case task.TargetCPU:
		return typ == device.TypeCPU
	default: // task.TargetGPU
		return typ == device.TypeGPU || typ == device.TypeAccelerator
	}
}
