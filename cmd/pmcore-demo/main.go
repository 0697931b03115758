// Command pmcore-demo runs a single vector-add Task against the
// simulated compute adapter, demonstrating Runtime construction, Program
// compilation, Kernel argument binding, and the submit/finish cycle.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/parallelme/pme"
	"github.com/parallelme/pme/buffer"
	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/internal/logging"
	"github.com/parallelme/pme/program"
	"github.com/parallelme/pme/task"
)

const vectorLen = 8

func main() {
	verbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	adapter := compute.NewSimulated()
	registerVectorAdd(adapter)

	rt, err := pme.NewRuntime(pme.RuntimeParams{Adapter: adapter})
	if err != nil {
		logger.Error("runtime construction failed", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	gpu := rt.Devices()[1]
	prog, err := program.New([]*device.Device{gpu}, "kernel void vectorAdd(global float* a, global float* b, global float* c) {}", "")
	if err != nil {
		logger.Error("program compilation failed", "error", err)
		os.Exit(1)
	}

	a := make([]float32, vectorLen)
	b := make([]float32, vectorLen)
	for i := range a {
		a[i] = float32(i)
		b[i] = float32(i * 2)
	}
	result := make([]float32, vectorLen)

	tsk := task.New(prog)
	tsk.Hint = task.TargetGPU
	done := make(chan struct{})

	tsk.Configure = func(dev *device.Device, kernels task.NameToKernel) error {
		k := kernels["vectorAdd"]

		bufA, err := newFloatBuffer(dev, a)
		if err != nil {
			return err
		}
		bufB, err := newFloatBuffer(dev, b)
		if err != nil {
			return err
		}
		bufC, err := newFloatBuffer(dev, make([]float32, vectorLen))
		if err != nil {
			return err
		}

		if err := k.SetArgBuffer(0, bufA); err != nil {
			return err
		}
		if err := k.SetArgBuffer(1, bufB); err != nil {
			return err
		}
		if err := k.SetArgBuffer(2, bufC); err != nil {
			return err
		}
		k.SetWorkRange(0, vectorLen)
		return nil
	}

	tsk.Finish = func(dev *device.Device, kernels task.NameToKernel) error {
		k := kernels["vectorAdd"]
		bufC := k.Buffer(2)
		raw := make([]byte, bufC.Size())
		if err := bufC.CopyTo(raw, len(raw)); err != nil {
			return err
		}
		for i := range result {
			result[i] = bytesToFloat32(raw[i*4 : i*4+4])
		}
		close(done)
		return nil
	}

	if _, err := tsk.AddKernel("vectorAdd", []*device.Device{gpu}); err != nil {
		logger.Error("kernel construction failed", "error", err)
		os.Exit(1)
	}

	rt.SubmitTask(tsk)
	rt.Finish()
	<-done

	fmt.Println("vector add result:", result)
	snap := rt.Metrics().Snapshot()
	fmt.Printf("kernels launched: %d, tasks executed: %d\n", snap.KernelsLaunched, snap.TasksExecuted)
}

func newFloatBuffer(dev *device.Device, values []float32) (*buffer.Buffer, error) {
	size := buffer.SizeGenerator(len(values), buffer.FLOAT)
	buf, err := buffer.New(dev, buffer.ReadWrite, size)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, size)
	for i, v := range values {
		putFloat32(raw[i*4:i*4+4], v)
	}
	if err := buf.CopyFrom(raw, len(raw)); err != nil {
		return nil, err
	}
	return buf, nil
}

func bytesToFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func registerVectorAdd(adapter *compute.Simulated) {
	adapter.RegisterKernel("vectorAdd", func(args []compute.KernelArg, offset, workSize int) {
		a, b, c := args[0].Buffer, args[1].Buffer, args[2].Buffer
		for i := offset; i < offset+workSize; i++ {
			av := bytesToFloat32(a[i*4 : i*4+4])
			bv := bytesToFloat32(b[i*4 : i*4+4])
			putFloat32(c[i*4:i*4+4], av+bv)
		}
	})
}
