// Package kernel wraps one named kernel entry compiled for every device
// (peer handles sharing a name across the device set), together with its
// work range and a sparse argument map recording which argument indices
// hold Buffers versus primitives.
package kernel

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/parallelme/pme/buffer"
	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/errs"
	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/program"
)

// ExtraArgumentType discriminates ExtraArgument's primitive variants.
type ExtraArgumentType int

const (
	CHAR ExtraArgumentType = iota
	INT
	UCHAR
	FLOAT
	SHORT
)

// ExtraArgument is a tagged-union primitive kernel argument: a
// discriminant plus one field per variant.
type ExtraArgument struct {
	Type  ExtraArgumentType
	Char  int8
	Int   int32
	UChar uint8
	Float float32
	Short int16
}

// Bytes returns the little-endian byte encoding of whichever variant is
// active, the payload SetKernelArg binds.
func (a ExtraArgument) Bytes() []byte {
	switch a.Type {
	case CHAR:
		return []byte{byte(a.Char)}
	case UCHAR:
		return []byte{a.UChar}
	case SHORT:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(a.Short))
		return b
	case INT:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(a.Int))
		return b
	case FLOAT:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(a.Float))
		return b
	default:
		return nil
	}
}

// argSlot records the Buffer currently bound at one argument index. A
// primitive rebind deletes the slot entirely, keeping each index
// monomorphic at any instant and dropping the retired Buffer's reference
// at rebind time.
type argSlot struct {
	buf *buffer.Buffer
}

// Kernel is one per-device handle vector plus a work range and argument
// map, owned exclusively by its Task.
type Kernel struct {
	mu sync.Mutex

	name    string
	devices []*device.Device
	handles map[int]compute.KernelHandle // device id -> per-device kernel handle

	offset   int
	workSize int

	args map[int]argSlot
}

// New creates one device-kernel handle per compiled per-device program.
func New(name string, devices []*device.Device, prog *program.Program) (*Kernel, error) {
	k := &Kernel{
		name:     name,
		devices:  devices,
		handles:  make(map[int]compute.KernelHandle, len(devices)),
		offset:   0,
		workSize: 1,
		args:     make(map[int]argSlot),
	}

	for _, dev := range devices {
		progHandle, ok := prog.HandleFor(dev.ID())
		if !ok {
			return nil, errs.NewDeviceError("CREATE_KERNEL", dev.ID(), errs.KernelConstructionError, "no compiled program for device")
		}
		h, res := dev.Adapter().CreateKernel(progHandle, dev.Handle(), name)
		if !res.Ok() {
			return nil, errs.NewDeviceErrorWithResult("CREATE_KERNEL", dev.ID(), errs.KernelConstructionError, int(res))
		}
		k.handles[dev.ID()] = h
	}

	return k, nil
}

// Name returns the kernel's name.
func (k *Kernel) Name() string { return k.name }

// SetWorkRange sets the 1-D NDRange atomically under the kernel mutex.
func (k *Kernel) SetWorkRange(offset, size int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.offset = offset
	k.workSize = size
}

// WorkRange returns the currently set (offset, workSize).
func (k *Kernel) WorkRange() (offset, workSize int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.offset, k.workSize
}

// SetArgBuffer binds argument i to buf, on the originating device's
// kernel handle only; peer devices do not see this binding, since a Task
// runs on a single device and only that device's handle launches.
// Replaces any primitive previously bound at i.
func (k *Kernel) SetArgBuffer(i int, buf *buffer.Buffer) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	dev := buf.Device()
	handle, ok := k.handles[dev.ID()]
	if !ok {
		return errs.NewDeviceError("SET_KERNEL_ARG", dev.ID(), errs.KernelArgumentError, "kernel has no handle for buffer's device")
	}

	if res := dev.Adapter().SetKernelArgBuffer(handle, i, buf.Handle()); !res.Ok() {
		return errs.NewDeviceErrorWithResult("SET_KERNEL_ARG", dev.ID(), errs.KernelArgumentError, int(res))
	}

	k.args[i] = argSlot{buf: buf}
	return nil
}

// SetArgPrimitive sets a primitive on every per-device kernel handle and
// removes any Buffer previously bound at i.
func (k *Kernel) SetArgPrimitive(i int, data []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, dev := range k.devices {
		handle := k.handles[dev.ID()]
		if res := dev.Adapter().SetKernelArg(handle, i, data); !res.Ok() {
			return errs.NewDeviceErrorWithResult("SET_KERNEL_ARG", dev.ID(), errs.KernelArgumentError, int(res))
		}
	}

	delete(k.args, i)
	return nil
}

// SetArg binds the tagged-union extra-argument variant, dispatching to the
// primitive path.
func (k *Kernel) SetArg(i int, arg ExtraArgument) error {
	return k.SetArgPrimitive(i, arg.Bytes())
}

// Buffer returns the Buffer currently bound at index i, or nil.
func (k *Kernel) Buffer(i int) *buffer.Buffer {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.args[i].buf
}

// ClKernel runs fn with the kernel mutex held, exposing the handle for one
// device.
func (k *Kernel) ClKernel(deviceID int, fn func(h compute.KernelHandle)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	fn(k.handles[deviceID])
}

// HandleFor returns the per-device kernel handle without taking the
// mutex's callback form, used by Worker when a single lookup suffices.
func (k *Kernel) HandleFor(deviceID int) compute.KernelHandle {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.handles[deviceID]
}

// Close releases every per-device kernel handle.
func (k *Kernel) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, dev := range k.devices {
		if h, ok := k.handles[dev.ID()]; ok {
			dev.Adapter().ReleaseKernel(h)
		}
	}
	return nil
}
