//go:build opencl
// +build opencl

// Package compute, under the opencl build tag, backs Adapter with real
// cgo OpenCL 1.1/1.2 bindings via github.com/jgillich/go-opencl.
package compute

import (
	"fmt"
	"sync"

	"github.com/jgillich/go-opencl/cl"
	"github.com/parallelme/pme/internal/logging"
)

// OpenCL implements Adapter against a real OpenCL ICD. Handles are
// allocated as incrementing ints and boxed in lookup tables the same way
// Simulated does, so higher layers never need a build-tag-specific code
// path of their own.
type OpenCL struct {
	mu sync.Mutex

	loaded  int
	devices []*cl.Device

	contexts map[ContextHandle]*cl.Context
	queues   map[QueueHandle]*cl.CommandQueue
	buffers  map[BufferHandle]*cl.MemObject
	programs map[ProgramHandle]*cl.Program
	kernels  map[KernelHandle]*cl.Kernel

	queueContext map[QueueHandle]ContextHandle
	next         int
}

// NewOpenCL constructs an adapter bound to the system OpenCL ICD. Load
// must still be called before use; construction itself touches no
// library state.
func NewOpenCL() *OpenCL {
	return &OpenCL{
		contexts:     make(map[ContextHandle]*cl.Context),
		queues:       make(map[QueueHandle]*cl.CommandQueue),
		buffers:      make(map[BufferHandle]*cl.MemObject),
		programs:     make(map[ProgramHandle]*cl.Program),
		kernels:      make(map[KernelHandle]*cl.Kernel),
		queueContext: make(map[QueueHandle]ContextHandle),
		next:         1,
	}
}

func (o *OpenCL) allocHandle() int {
	h := o.next
	o.next++
	return h
}

// Load implements Adapter.
func (o *OpenCL) Load() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.loaded > 0 {
		o.loaded++
		return true
	}

	platforms, err := cl.GetPlatforms()
	if err != nil || len(platforms) == 0 {
		logging.Default().Error("opencl platform enumeration failed", "err", err)
		return false
	}

	var devices []*cl.Device
	for _, p := range platforms {
		ds, err := p.GetDevices(cl.DeviceTypeAll)
		if err != nil {
			logging.Default().Error("opencl device enumeration failed", "err", err)
			return false
		}
		devices = append(devices, ds...)
	}
	if len(devices) == 0 {
		logging.Default().Error("opencl device enumeration failed", "err", "no devices")
		return false
	}

	o.devices = devices
	o.loaded = 1
	return true
}

// Unload implements Adapter.
func (o *OpenCL) Unload() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loaded > 0 {
		o.loaded--
	}
}

// Enumerate implements Adapter.
func (o *OpenCL) Enumerate() ([]DeviceHandle, Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	handles := make([]DeviceHandle, len(o.devices))
	for i := range o.devices {
		handles[i] = DeviceHandle(i)
	}
	return handles, ResultSuccess
}

// DeviceType implements Adapter.
func (o *OpenCL) DeviceType(d DeviceHandle) (DeviceType, Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if int(d) >= len(o.devices) {
		return DeviceTypeUnknown, Result(-1)
	}
	switch o.devices[d].Type() {
	case cl.DeviceTypeCPU:
		return DeviceTypeCPU, ResultSuccess
	case cl.DeviceTypeGPU:
		return DeviceTypeGPU, ResultSuccess
	case cl.DeviceTypeAccelerator:
		return DeviceTypeAccelerator, ResultSuccess
	default:
		return DeviceTypeUnknown, Result(-1)
	}
}

// CreateContext implements Adapter.
func (o *OpenCL) CreateContext(d DeviceHandle) (ContextHandle, Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if int(d) >= len(o.devices) {
		return 0, Result(-1)
	}
	ctx, err := cl.CreateContext([]*cl.Device{o.devices[d]})
	if err != nil {
		return 0, Result(-1)
	}
	h := ContextHandle(o.allocHandle())
	o.contexts[h] = ctx
	return h, ResultSuccess
}

// ReleaseContext implements Adapter.
func (o *OpenCL) ReleaseContext(ctx ContextHandle) Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.contexts[ctx]; ok {
		c.Release()
		delete(o.contexts, ctx)
	}
	return ResultSuccess
}

// CreateQueue implements Adapter.
func (o *OpenCL) CreateQueue(ctx ContextHandle, d DeviceHandle) (QueueHandle, Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.contexts[ctx]
	if !ok || int(d) >= len(o.devices) {
		return 0, Result(-1)
	}
	q, err := c.CreateCommandQueue(o.devices[d], 0)
	if err != nil {
		return 0, Result(-1)
	}
	h := QueueHandle(o.allocHandle())
	o.queues[h] = q
	o.queueContext[h] = ctx
	return h, ResultSuccess
}

// ReleaseQueue implements Adapter.
func (o *OpenCL) ReleaseQueue(q QueueHandle) Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if queue, ok := o.queues[q]; ok {
		queue.Release()
		delete(o.queues, q)
		delete(o.queueContext, q)
	}
	return ResultSuccess
}

// CreateBuffer implements Adapter.
func (o *OpenCL) CreateBuffer(ctx ContextHandle, flags AccessFlags, bytes int) (BufferHandle, Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.contexts[ctx]
	if !ok {
		return 0, Result(-1)
	}
	buf, err := c.CreateEmptyBuffer(clMemFlags(flags), bytes)
	if err != nil {
		return 0, Result(-1)
	}
	h := BufferHandle(o.allocHandle())
	o.buffers[h] = buf
	return h, ResultSuccess
}

func clMemFlags(flags AccessFlags) cl.MemFlag {
	switch flags {
	case ReadOnly:
		return cl.MemReadOnly
	case WriteOnly:
		return cl.MemWriteOnly
	default:
		return cl.MemReadWrite
	}
}

// ReleaseBuffer implements Adapter.
func (o *OpenCL) ReleaseBuffer(b BufferHandle) Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if buf, ok := o.buffers[b]; ok {
		buf.Release()
		delete(o.buffers, b)
	}
	return ResultSuccess
}

// CreateProgramFromSource implements Adapter.
func (o *OpenCL) CreateProgramFromSource(ctx ContextHandle, source string) (ProgramHandle, Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.contexts[ctx]
	if !ok {
		return 0, Result(-1)
	}
	p, err := c.CreateProgramWithSource([]string{source})
	if err != nil {
		return 0, Result(-1)
	}
	h := ProgramHandle(o.allocHandle())
	o.programs[h] = p
	return h, ResultSuccess
}

// BuildProgram implements Adapter.
func (o *OpenCL) BuildProgram(p ProgramHandle, d DeviceHandle, flags string) Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	prog, ok := o.programs[p]
	if !ok {
		return Result(-1)
	}
	if err := prog.BuildProgram(nil, flags); err != nil {
		return Result(-11)
	}
	return ResultSuccess
}

// GetBuildLog implements Adapter.
func (o *OpenCL) GetBuildLog(p ProgramHandle, d DeviceHandle) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	prog, ok := o.programs[p]
	if !ok || int(d) >= len(o.devices) {
		return ""
	}
	log, err := prog.BuildLog(o.devices[d])
	if err != nil {
		return fmt.Sprintf("build log unavailable: %v", err)
	}
	return log
}

// ReleaseProgram implements Adapter.
func (o *OpenCL) ReleaseProgram(p ProgramHandle) Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if prog, ok := o.programs[p]; ok {
		prog.Release()
		delete(o.programs, p)
	}
	return ResultSuccess
}

// CreateKernel implements Adapter.
func (o *OpenCL) CreateKernel(p ProgramHandle, d DeviceHandle, name string) (KernelHandle, Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	prog, ok := o.programs[p]
	if !ok {
		return 0, Result(-1)
	}
	k, err := prog.CreateKernel(name)
	if err != nil {
		return 0, Result(-1)
	}
	h := KernelHandle(o.allocHandle())
	o.kernels[h] = k
	return h, ResultSuccess
}

// SetKernelArg implements Adapter.
func (o *OpenCL) SetKernelArg(k KernelHandle, index int, data []byte) Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	kern, ok := o.kernels[k]
	if !ok {
		return Result(-1)
	}
	if err := kern.SetArgRaw(index, data); err != nil {
		return Result(-1)
	}
	return ResultSuccess
}

// SetKernelArgBuffer implements Adapter.
func (o *OpenCL) SetKernelArgBuffer(k KernelHandle, index int, b BufferHandle) Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	kern, ok := o.kernels[k]
	if !ok {
		return Result(-1)
	}
	buf, ok := o.buffers[b]
	if !ok {
		return Result(-1)
	}
	if err := kern.SetArgBuffer(index, buf); err != nil {
		return Result(-1)
	}
	return ResultSuccess
}

// ReleaseKernel implements Adapter.
func (o *OpenCL) ReleaseKernel(k KernelHandle) Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if kern, ok := o.kernels[k]; ok {
		kern.Release()
		delete(o.kernels, k)
	}
	return ResultSuccess
}

// EnqueueNDRange implements Adapter.
func (o *OpenCL) EnqueueNDRange(q QueueHandle, k KernelHandle, offset, workSize int) Result {
	o.mu.Lock()
	queue, ok := o.queues[q]
	kern, ok2 := o.kernels[k]
	o.mu.Unlock()
	if !ok || !ok2 {
		return Result(-1)
	}
	_, err := queue.EnqueueNDRangeKernel(kern, []int{offset}, []int{workSize}, nil, nil)
	if err != nil {
		return Result(-1)
	}
	return ResultSuccess
}

// MapBuffer implements Adapter.
func (o *OpenCL) MapBuffer(q QueueHandle, b BufferHandle, flags MapFlags, bytes int) ([]byte, Result) {
	o.mu.Lock()
	queue, ok := o.queues[q]
	buf, ok2 := o.buffers[b]
	o.mu.Unlock()
	if !ok || !ok2 {
		return nil, Result(-1)
	}
	clFlags := cl.MapFlagRead
	if flags == MapWrite {
		clFlags = cl.MapFlagWrite
	}
	ptr, _, err := queue.EnqueueMapBuffer(buf, true, clFlags, 0, bytes, nil)
	if err != nil {
		return nil, Result(-1)
	}
	return ptr, ResultSuccess
}

// UnmapBuffer implements Adapter.
func (o *OpenCL) UnmapBuffer(q QueueHandle, b BufferHandle, mapped []byte) Result {
	o.mu.Lock()
	queue, ok := o.queues[q]
	buf, ok2 := o.buffers[b]
	o.mu.Unlock()
	if !ok || !ok2 {
		return Result(-1)
	}
	if _, err := queue.EnqueueUnmapMemObject(buf, mapped, nil); err != nil {
		return Result(-1)
	}
	return ResultSuccess
}

// Finish implements Adapter.
func (o *OpenCL) Finish(q QueueHandle) Result {
	o.mu.Lock()
	queue, ok := o.queues[q]
	o.mu.Unlock()
	if !ok {
		return Result(-1)
	}
	if err := queue.Finish(); err != nil {
		return Result(-1)
	}
	return ResultSuccess
}

var _ Adapter = (*OpenCL)(nil)
