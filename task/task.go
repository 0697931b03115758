// Package task defines the unit of submission to the runtime: an ordered
// list of Kernels, a configure callback, a finish callback, and a
// scheduling hint or score.
package task

import (
	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/kernel"
	"github.com/parallelme/pme/program"
)

// Hint is the scheduling hint a Task carries for the FCFS scheduler.
type Hint int

const (
	// TargetGPU is the default hint.
	TargetGPU Hint = iota
	TargetCPU
)

// Score is the per-device-class cost pair the HEFT scheduler uses.
// Non-negative; defaults to (1,1).
type Score struct {
	CPUScore float64
	GPUScore float64
}

// DefaultScore is the HEFT default when a Task does not specify one.
var DefaultScore = Score{CPUScore: 1, GPUScore: 1}

// NameToKernel maps a Kernel's name to its instance, the shape Task
// callbacks receive for configure/finish lookups.
type NameToKernel map[string]*kernel.Kernel

// ConfigureFunc is invoked once by the Worker just before kernels run, on
// the Worker's thread, with the chosen Device already locked-in.
// Responsibilities: create Buffers against this Device, pull input data
// into them, bind kernel arguments, set each kernel's work range.
type ConfigureFunc func(dev *device.Device, kernels NameToKernel) error

// FinishFunc is invoked once after the last kernel has completed.
// Responsibilities: copy device buffers back to host sinks, release any
// host-side references.
type FinishFunc func(dev *device.Device, kernels NameToKernel) error

// Task is an ordered bundle of kernel invocations submitted atomically
// and executed on one device.
type Task struct {
	Program *program.Program

	kernels       []*kernel.Kernel
	kernelsByName NameToKernel

	Configure ConfigureFunc
	Finish    FinishFunc

	Hint  Hint
	Score Score
}

// New creates a Task bound to prog, defaulting Hint to TargetGPU and Score
// to DefaultScore.
func New(prog *program.Program) *Task {
	return &Task{
		Program:       prog,
		kernelsByName: make(NameToKernel),
		Hint:          TargetGPU,
		Score:         DefaultScore,
	}
}

// AddKernel constructs a Kernel against each of devices (every one must
// have a compiled program in t.Program) and appends it, registering it
// under name. Kernel names are
// not validated for uniqueness: by convention there is one entry per name,
// and a duplicate name simply overwrites the name->Kernel lookup while
// both instances still run in insertion order.
func (t *Task) AddKernel(name string, devices []*device.Device) (*kernel.Kernel, error) {
	k, err := kernel.New(name, devices, t.Program)
	if err != nil {
		return nil, err
	}
	t.kernels = append(t.kernels, k)
	t.kernelsByName[name] = k
	return k, nil
}

// Kernels returns the ordered kernel list, the order Worker.executeTask
// launches them in.
func (t *Task) Kernels() []*kernel.Kernel { return t.kernels }

// KernelsByName returns the name->Kernel lookup Task callbacks receive.
func (t *Task) KernelsByName() NameToKernel { return t.kernelsByName }

// Close releases every Kernel the Task owns.
func (t *Task) Close() error {
	for _, k := range t.kernels {
		k.Close()
	}
	return nil
}
