package pme_test

import (
	"testing"
	"time"

	"github.com/parallelme/pme"
	"github.com/parallelme/pme/buffer"
	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/kernel"
	"github.com/parallelme/pme/program"
	"github.com/parallelme/pme/task"
	"github.com/stretchr/testify/require"
)

// TestRuntimeExecutesPrimitiveArgTask submits a single-kernel task with a
// primitive argument on a CPU-only runtime and asserts the finish-callback
// has run by the time Runtime.Finish returns.
func TestRuntimeExecutesPrimitiveArgTask(t *testing.T) {
	adapter := compute.NewSimulated().WithDevices(compute.DeviceTypeCPU)
	adapter.RegisterKernel("addOne", func(args []compute.KernelArg, offset, workSize int) {})

	rt, err := pme.NewRuntime(pme.RuntimeParams{Adapter: adapter})
	require.NoError(t, err)
	defer rt.Close()

	require.Len(t, rt.Devices(), 1)

	prog, err := program.New(rt.Devices(), "kernel void addOne(int i) {}", "")
	require.NoError(t, err)

	tsk := task.New(prog)
	tsk.Hint = task.TargetCPU // the only device is a CPU; the default hint targets GPUs
	observed := make(chan struct{})
	tsk.Configure = func(d *device.Device, kernels task.NameToKernel) error {
		k := kernels["addOne"]
		if err := k.SetArg(0, kernel.ExtraArgument{Type: kernel.INT, Int: 42}); err != nil {
			return err
		}
		k.SetWorkRange(0, 1)
		return nil
	}
	tsk.Finish = func(d *device.Device, kernels task.NameToKernel) error {
		close(observed)
		return nil
	}
	_, err = tsk.AddKernel("addOne", rt.Devices())
	require.NoError(t, err)

	rt.SubmitTask(tsk)
	rt.Finish()

	select {
	case <-observed:
	default:
		t.Fatal("finish-callback did not run before Runtime.Finish returned")
	}
}

// TestRuntimeFinishDrainsAllTasks submits N tasks and asserts every
// finish-callback has completed once Runtime.Finish returns.
func TestRuntimeFinishDrainsAllTasks(t *testing.T) {
	adapter := compute.NewSimulated().WithDevices(compute.DeviceTypeCPU, compute.DeviceTypeGPU)
	adapter.RegisterKernel("noop", func(args []compute.KernelArg, offset, workSize int) {})

	rt, err := pme.NewRuntime(pme.RuntimeParams{Adapter: adapter})
	require.NoError(t, err)
	defer rt.Close()

	prog, err := program.New(rt.Devices(), "kernel void noop() {}", "")
	require.NoError(t, err)

	const n = 10
	var done [n]chan struct{}
	for i := 0; i < n; i++ {
		done[i] = make(chan struct{})
		tsk := task.New(prog)
		idx := i
		tsk.Finish = func(d *device.Device, kernels task.NameToKernel) error {
			close(done[idx])
			return nil
		}
		_, err := tsk.AddKernel("noop", rt.Devices())
		require.NoError(t, err)
		rt.SubmitTask(tsk)
	}

	rt.Finish()

	for i := 0; i < n; i++ {
		select {
		case <-done[i]:
		case <-time.After(time.Second):
			t.Fatalf("task %d never finished", i)
		}
	}
}

// TestBufferCopyTrafficReachesRuntimeMetrics proves Buffer.CopyFrom/CopyTo
// report through the Device's installed Observer to the Runtime's own
// Metrics, not just to metrics_test.go's isolated unit test of
// Metrics.RecordBufferCopyIn/Out.
func TestBufferCopyTrafficReachesRuntimeMetrics(t *testing.T) {
	adapter := compute.NewSimulated().WithDevices(compute.DeviceTypeCPU)
	adapter.RegisterKernel("noop", func(args []compute.KernelArg, offset, workSize int) {})

	rt, err := pme.NewRuntime(pme.RuntimeParams{Adapter: adapter})
	require.NoError(t, err)
	defer rt.Close()

	prog, err := program.New(rt.Devices(), "kernel void noop(__global int* b) {}", "")
	require.NoError(t, err)

	tsk := task.New(prog)
	tsk.Hint = task.TargetCPU
	done := make(chan struct{})
	tsk.Configure = func(d *device.Device, kernels task.NameToKernel) error {
		buf, err := buffer.New(d, buffer.ReadWrite, 16)
		if err != nil {
			return err
		}
		if err := buf.CopyFrom(make([]byte, 16), 16); err != nil {
			return err
		}
		return kernels["noop"].SetArgBuffer(0, buf)
	}
	tsk.Finish = func(d *device.Device, kernels task.NameToKernel) error {
		buf := kernels["noop"].Buffer(0)
		if err := buf.CopyTo(make([]byte, 16), 16); err != nil {
			return err
		}
		close(done)
		return nil
	}
	_, err = tsk.AddKernel("noop", rt.Devices())
	require.NoError(t, err)

	rt.SubmitTask(tsk)
	rt.Finish()

	select {
	case <-done:
	default:
		t.Fatal("finish-callback did not run before Runtime.Finish returned")
	}

	snap := rt.Metrics().Snapshot()
	require.EqualValues(t, 16, snap.BufferCopyInBytes)
	require.EqualValues(t, 16, snap.BufferCopyOutBytes)
}

func TestDefaultParamsUsesFCFSAndSimulatedAdapter(t *testing.T) {
	params := pme.DefaultParams()
	require.Equal(t, pme.SchedulerFCFS, params.Scheduler)
	require.Nil(t, params.Adapter) // nil selects a fresh simulated adapter
	rt, err := pme.NewRuntime(params)
	require.NoError(t, err)
	defer rt.Close()
	require.NotEmpty(t, rt.Devices())
}
