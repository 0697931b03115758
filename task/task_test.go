package task_test

import (
	"testing"
	"time"

	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/internal/worker"
	"github.com/parallelme/pme/program"
	"github.com/parallelme/pme/scheduler"
	"github.com/parallelme/pme/task"
	"github.com/stretchr/testify/require"
)

func newTestDevices(t *testing.T) []*device.Device {
	t.Helper()
	adapter := compute.NewSimulated()
	adapter.Load()
	handles, res := adapter.Enumerate()
	require.True(t, res.Ok())

	devs := make([]*device.Device, len(handles))
	for i, h := range handles {
		d, err := device.New(i, adapter, h)
		require.NoError(t, err)
		devs[i] = d
	}
	return devs
}

func TestNewDefaultsHintAndScore(t *testing.T) {
	devs := newTestDevices(t)
	prog, err := program.New(devs, "__kernel void k() {}", "")
	require.NoError(t, err)

	tsk := task.New(prog)
	require.Equal(t, task.TargetGPU, tsk.Hint)
	require.Equal(t, task.DefaultScore, tsk.Score)
	require.Empty(t, tsk.Kernels())
}

func TestAddKernelOrdersAndNamesKernels(t *testing.T) {
	devs := newTestDevices(t)
	prog, err := program.New(devs, "__kernel void a() {} __kernel void b() {}", "")
	require.NoError(t, err)

	tsk := task.New(prog)
	ka, err := tsk.AddKernel("a", devs)
	require.NoError(t, err)
	kb, err := tsk.AddKernel("b", devs)
	require.NoError(t, err)

	// Insertion order is preserved; the worker launches kernels in this order.
	require.Equal(t, []string{"a", "b"}, kernelNames(tsk))
	require.Same(t, ka, tsk.KernelsByName()["a"])
	require.Same(t, kb, tsk.KernelsByName()["b"])
}

// TestZeroKernelTaskRunsOnlyCallbacks: a Task with zero kernels still runs
// its configure and finish callbacks.
func TestZeroKernelTaskRunsOnlyCallbacks(t *testing.T) {
	devs := newTestDevices(t)
	prog, err := program.New(devs, "__kernel void unused() {}", "")
	require.NoError(t, err)

	tsk := task.New(prog)
	require.Empty(t, tsk.Kernels())

	var configured, finished bool
	done := make(chan struct{})
	tsk.Configure = func(d *device.Device, kernels task.NameToKernel) error {
		configured = true
		return nil
	}
	tsk.Finish = func(d *device.Device, kernels task.NameToKernel) error {
		finished = true
		close(done)
		return nil
	}

	// devs[1] is the GPU device, matching the default TargetGPU hint.
	sched := scheduler.NewFCFS()
	w := worker.New(devs[1], nil, nil)
	require.NoError(t, w.Run(sched, nil))
	defer w.Close()
	sched.Push(tsk)
	w.WakeUp()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero-kernel task did not finish")
	}
	require.False(t, sched.HasWork())
	require.True(t, configured)
	require.True(t, finished)
}

func kernelNames(tsk *task.Task) []string {
	names := make([]string, len(tsk.Kernels()))
	for i, k := range tsk.Kernels() {
		names[i] = k.Name()
	}
	return names
}
