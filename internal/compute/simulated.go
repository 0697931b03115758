package compute

import (
	"fmt"
	"strings"
	"sync"

	"github.com/parallelme/pme/internal/logging"
)

// syntaxErrorSentinel lets tests exercise the ProgramCompilationError path
// without a real kernel-language parser: any source containing this token
// fails to build.
const syntaxErrorSentinel = "__SYNTAX_ERROR__"

// KernelFunc is the simulated adapter's stand-in for compiled kernel code.
// Kernel source text is opaque to the runtime, so the simulated adapter
// cannot execute it; tests and demos register a KernelFunc under the name
// a Kernel is created with, and EnqueueNDRange dispatches to it.
type KernelFunc func(args []KernelArg, offset, workSize int)

// KernelArg is the value the simulated adapter hands a KernelFunc for one
// bound argument slot: either a primitive byte payload or a handle to the
// backing buffer's live bytes.
type KernelArg struct {
	IsBuffer bool
	Data     []byte // primitive payload, valid when !IsBuffer
	Buffer   []byte // live backing store, valid when IsBuffer (mutate in place)
}

type simDevice struct {
	handle DeviceHandle
	typ    DeviceType
}

type simProgram struct {
	source   string
	builds   map[DeviceHandle]bool
	buildLog map[DeviceHandle]string
}

type simKernel struct {
	name    string
	device  DeviceHandle
	program ProgramHandle
	args    map[int]KernelArg
}

// Simulated is a pure-Go, in-process implementation of Adapter. It is the
// default backend (no build tag required) so the module and its tests
// build without an OpenCL ICD present.
type Simulated struct {
	mu          sync.Mutex
	loaded      int // refcount; tolerates several Runtimes sharing the adapter
	devices     []simDevice
	buffers     map[BufferHandle][]byte
	flags       map[BufferHandle]AccessFlags
	programs    map[ProgramHandle]*simProgram
	kernels     map[KernelHandle]*simKernel
	kernelFuncs map[string]KernelFunc

	nextHandle int
}

// NewSimulated creates a Simulated adapter exposing one CPU and one GPU
// device by default, the smallest heterogeneous set the schedulers can
// make a real choice over.
func NewSimulated() *Simulated {
	return &Simulated{
		devices: []simDevice{
			{handle: 0, typ: DeviceTypeCPU},
			{handle: 1, typ: DeviceTypeGPU},
		},
		buffers:     make(map[BufferHandle][]byte),
		flags:       make(map[BufferHandle]AccessFlags),
		programs:    make(map[ProgramHandle]*simProgram),
		kernels:     make(map[KernelHandle]*simKernel),
		kernelFuncs: make(map[string]KernelFunc),
		nextHandle:  1,
	}
}

// WithDevices overrides the default two-device topology. Intended for
// scheduler tests that need a specific device-type mix.
func (s *Simulated) WithDevices(types ...DeviceType) *Simulated {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = s.devices[:0]
	for i, t := range types {
		s.devices = append(s.devices, simDevice{handle: DeviceHandle(i), typ: t})
	}
	return s
}

// RegisterKernel installs the Go function that EnqueueNDRange dispatches to
// for kernels created under the given name.
func (s *Simulated) RegisterKernel(name string, fn KernelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kernelFuncs[name] = fn
}

func (s *Simulated) allocHandle() int {
	h := s.nextHandle
	s.nextHandle++
	return h
}

// Load implements Adapter.
func (s *Simulated) Load() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded++
	logging.Default().Debug("simulated compute library loaded", "refcount", s.loaded)
	return true
}

// Unload implements Adapter.
func (s *Simulated) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded > 0 {
		s.loaded--
	}
	logging.Default().Debug("simulated compute library unloaded", "refcount", s.loaded)
}

// Enumerate implements Adapter.
func (s *Simulated) Enumerate() ([]DeviceHandle, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]DeviceHandle, len(s.devices))
	for i, d := range s.devices {
		handles[i] = d.handle
	}
	return handles, ResultSuccess
}

// DeviceType implements Adapter.
func (s *Simulated) DeviceType(d DeviceHandle) (DeviceType, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dev := range s.devices {
		if dev.handle == d {
			return dev.typ, ResultSuccess
		}
	}
	return DeviceTypeUnknown, Result(-1)
}

// CreateContext implements Adapter. A simulated context is a trivial
// handle: there is nothing to bind since every device lives in one
// process's address space already.
func (s *Simulated) CreateContext(d DeviceHandle) (ContextHandle, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ContextHandle(s.allocHandle()), ResultSuccess
}

// ReleaseContext implements Adapter.
func (s *Simulated) ReleaseContext(ctx ContextHandle) Result { return ResultSuccess }

// CreateQueue implements Adapter.
func (s *Simulated) CreateQueue(ctx ContextHandle, d DeviceHandle) (QueueHandle, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return QueueHandle(s.allocHandle()), ResultSuccess
}

// ReleaseQueue implements Adapter.
func (s *Simulated) ReleaseQueue(q QueueHandle) Result { return ResultSuccess }

// CreateBuffer implements Adapter.
func (s *Simulated) CreateBuffer(ctx ContextHandle, flags AccessFlags, bytes int) (BufferHandle, Result) {
	if bytes < 0 {
		return 0, Result(-1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := BufferHandle(s.allocHandle())
	s.buffers[h] = make([]byte, bytes)
	s.flags[h] = flags
	return h, ResultSuccess
}

// ReleaseBuffer implements Adapter.
func (s *Simulated) ReleaseBuffer(b BufferHandle) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, b)
	delete(s.flags, b)
	return ResultSuccess
}

// CreateProgramFromSource implements Adapter.
func (s *Simulated) CreateProgramFromSource(ctx ContextHandle, source string) (ProgramHandle, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := ProgramHandle(s.allocHandle())
	s.programs[h] = &simProgram{
		source:   source,
		builds:   make(map[DeviceHandle]bool),
		buildLog: make(map[DeviceHandle]string),
	}
	return h, ResultSuccess
}

// BuildProgram implements Adapter.
func (s *Simulated) BuildProgram(p ProgramHandle, d DeviceHandle, flags string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.programs[p]
	if !ok {
		return Result(-1)
	}
	if strings.Contains(prog.source, syntaxErrorSentinel) {
		idx := strings.Index(prog.source, syntaxErrorSentinel)
		prog.buildLog[d] = fmt.Sprintf("error: unexpected token near offset %d", idx)
		prog.builds[d] = false
		return Result(-11) // CL_BUILD_PROGRAM_FAILURE
	}
	prog.builds[d] = true
	prog.buildLog[d] = ""
	return ResultSuccess
}

// GetBuildLog implements Adapter.
func (s *Simulated) GetBuildLog(p ProgramHandle, d DeviceHandle) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.programs[p]
	if !ok {
		return ""
	}
	return prog.buildLog[d]
}

// ReleaseProgram implements Adapter.
func (s *Simulated) ReleaseProgram(p ProgramHandle) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.programs, p)
	return ResultSuccess
}

// CreateKernel implements Adapter.
func (s *Simulated) CreateKernel(p ProgramHandle, d DeviceHandle, name string) (KernelHandle, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.programs[p]
	if !ok || !prog.builds[d] {
		return 0, Result(-1)
	}
	h := KernelHandle(s.allocHandle())
	s.kernels[h] = &simKernel{
		name:    name,
		device:  d,
		program: p,
		args:    make(map[int]KernelArg),
	}
	return h, ResultSuccess
}

// SetKernelArg implements Adapter.
func (s *Simulated) SetKernelArg(k KernelHandle, index int, data []byte) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	kern, ok := s.kernels[k]
	if !ok {
		return Result(-1)
	}
	payload := make([]byte, len(data))
	copy(payload, data)
	kern.args[index] = KernelArg{Data: payload}
	return ResultSuccess
}

// SetKernelArgBuffer implements Adapter.
func (s *Simulated) SetKernelArgBuffer(k KernelHandle, index int, b BufferHandle) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	kern, ok := s.kernels[k]
	if !ok {
		return Result(-1)
	}
	buf, ok := s.buffers[b]
	if !ok {
		return Result(-1)
	}
	kern.args[index] = KernelArg{IsBuffer: true, Buffer: buf}
	return ResultSuccess
}

// ReleaseKernel implements Adapter.
func (s *Simulated) ReleaseKernel(k KernelHandle) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kernels, k)
	return ResultSuccess
}

// EnqueueNDRange implements Adapter. Execution is synchronous: the
// simulated adapter has no device-side queue, so enqueue performs the
// launch immediately and Finish is a no-op.
func (s *Simulated) EnqueueNDRange(q QueueHandle, k KernelHandle, offset, workSize int) Result {
	s.mu.Lock()
	kern, ok := s.kernels[k]
	if !ok {
		s.mu.Unlock()
		return Result(-1)
	}
	fn, hasFn := s.kernelFuncs[kern.name]
	args := make([]KernelArg, 0, len(kern.args))
	maxIdx := -1
	for idx := range kern.args {
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	for i := 0; i <= maxIdx; i++ {
		args = append(args, kern.args[i])
	}
	s.mu.Unlock()

	if !hasFn {
		// No registered behavior for this kernel name: a legal no-op launch.
		return ResultSuccess
	}
	fn(args, offset, workSize)
	return ResultSuccess
}

// MapBuffer implements Adapter. The returned slice aliases the backing
// store directly, since the simulated backend already lives in host
// memory; the same zero-copy map path an integrated GPU takes.
func (s *Simulated) MapBuffer(q QueueHandle, b BufferHandle, flags MapFlags, bytes int) ([]byte, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.buffers[b]
	if !ok {
		return nil, Result(-1)
	}
	n := bytes
	if n > len(buf) {
		n = len(buf)
	}
	return buf[:n], ResultSuccess
}

// UnmapBuffer implements Adapter. Nothing to release: the mapped slice
// already aliases the buffer's storage.
func (s *Simulated) UnmapBuffer(q QueueHandle, b BufferHandle, mapped []byte) Result {
	return ResultSuccess
}

// Finish implements Adapter. Launches are synchronous, so there is never
// anything outstanding to wait for.
func (s *Simulated) Finish(q QueueHandle) Result { return ResultSuccess }

var _ Adapter = (*Simulated)(nil)
