// Package compute provides a uniform, stable surface over the underlying
// device-compute library so the rest of the core does not encode
// API-version or dynamic-load concerns. The default build uses a pure-Go
// Simulated adapter; an `opencl` build tag swaps in a real cgo binding.
package compute

import "fmt"

// Result is the numeric device-compute result code every Adapter call
// returns. Zero is success; non-zero values are negative, mirroring the
// OpenCL CL_* error-code convention.
type Result int

// ResultSuccess is the zero value returned by every Adapter call on success.
const ResultSuccess Result = 0

// Ok reports whether the result represents success.
func (r Result) Ok() bool { return r == ResultSuccess }

func (r Result) String() string {
	return fmt.Sprintf("result(%d)", int(r))
}

// DeviceType is the compute class of an enumerated device.
type DeviceType int

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeCPU
	DeviceTypeGPU
	DeviceTypeAccelerator
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeCPU:
		return "CPU"
	case DeviceTypeGPU:
		return "GPU"
	case DeviceTypeAccelerator:
		return "Accelerator"
	default:
		return "Unknown"
	}
}

// AccessFlags describes how a Buffer may be accessed from a kernel.
type AccessFlags int

const (
	ReadOnly AccessFlags = iota
	ReadWrite
	WriteOnly
)

// MapFlags describes the direction of a Buffer map operation.
type MapFlags int

const (
	MapRead MapFlags = iota
	MapWrite
)

// Opaque handle types. The Simulated adapter backs these with incrementing
// integer ids; the opencl-tagged adapter backs them with real cl.* object
// wrappers boxed behind the same int-keyed handle table, so callers above
// this package never need to know which backend is live.
type (
	DeviceHandle  int
	ContextHandle int
	QueueHandle   int
	ProgramHandle int
	KernelHandle  int
	BufferHandle  int
)

// Adapter is the façade every Device/Buffer/Program/Kernel call reaches
// through. Every method that can fail returns a Result; callers are
// responsible for converting a non-success Result into the appropriate
// structured error, carrying the numeric code as payload.
type Adapter interface {
	// Load attempts to bind the system's device-compute library. It is
	// idempotent and refcounted: Runtime construction fails if it returns
	// false.
	Load() bool

	// Unload releases the process-wide binding. Safe to call more than
	// once; only the final matching Unload actually tears anything down.
	Unload()

	// Enumerate returns the ordered list of device handles across every
	// platform the loaded library exposes.
	Enumerate() ([]DeviceHandle, Result)

	// DeviceType queries the compute class of one enumerated device.
	DeviceType(d DeviceHandle) (DeviceType, Result)

	CreateContext(d DeviceHandle) (ContextHandle, Result)
	ReleaseContext(ctx ContextHandle) Result

	CreateQueue(ctx ContextHandle, d DeviceHandle) (QueueHandle, Result)
	ReleaseQueue(q QueueHandle) Result

	CreateBuffer(ctx ContextHandle, flags AccessFlags, bytes int) (BufferHandle, Result)
	ReleaseBuffer(b BufferHandle) Result

	CreateProgramFromSource(ctx ContextHandle, source string) (ProgramHandle, Result)
	BuildProgram(p ProgramHandle, d DeviceHandle, flags string) Result
	GetBuildLog(p ProgramHandle, d DeviceHandle) string
	ReleaseProgram(p ProgramHandle) Result

	CreateKernel(p ProgramHandle, d DeviceHandle, name string) (KernelHandle, Result)

	// SetKernelArg binds a primitive argument, given its raw bytes.
	SetKernelArg(k KernelHandle, index int, data []byte) Result

	// SetKernelArgBuffer binds a device buffer argument. This is the Go
	// equivalent of calling clSetKernelArg with sizeof(cl_mem) and a
	// pointer to the buffer handle; kept as its own method instead of an
	// encoded byte payload because Go has no portable way to alias an
	// opaque handle through a byte slice without unsafe.
	SetKernelArgBuffer(k KernelHandle, index int, b BufferHandle) Result

	ReleaseKernel(k KernelHandle) Result

	// EnqueueNDRange launches a 1-D NDRange of the given kernel.
	EnqueueNDRange(q QueueHandle, k KernelHandle, offset, workSize int) Result

	// MapBuffer maps bytes worth of device memory into host address space.
	// The returned slice aliases adapter-owned memory until UnmapBuffer is
	// called with it.
	MapBuffer(q QueueHandle, b BufferHandle, flags MapFlags, bytes int) ([]byte, Result)
	UnmapBuffer(q QueueHandle, b BufferHandle, mapped []byte) Result

	// Finish blocks until every command previously enqueued on q completes.
	Finish(q QueueHandle) Result
}
