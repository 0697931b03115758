// Package buffer provides device-resident memory regions of known byte
// size, created against one Device, with CopyFrom/CopyTo implemented via
// map/memcpy/unmap on the owning device's queue.
package buffer

import (
	"sync"

	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/errs"
	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/obs"
)

// AccessFlags mirrors compute.AccessFlags for callers outside internal/.
type AccessFlags = compute.AccessFlags

const (
	ReadOnly  = compute.ReadOnly
	ReadWrite = compute.ReadWrite
	WriteOnly = compute.WriteOnly
)

// Type is the element-type tag SizeGenerator sizes buffers by.
type Type int

const (
	SHORT Type = iota
	INT
	FLOAT
	CHAR4
	FLOAT4
	RGBA
)

// bytesPerElement gives the per-element byte width of each Type tag.
var bytesPerElement = map[Type]int{
	SHORT:  2,
	INT:    4,
	FLOAT:  4,
	CHAR4:  4,
	FLOAT4: 16,
	RGBA:   4,
}

// SizeGenerator returns elements × bytesPerElement(typeTag).
func SizeGenerator(elements int, typeTag Type) int {
	return elements * bytesPerElement[typeTag]
}

// Buffer is a device-resident memory region with host map/unmap access.
type Buffer struct {
	mu sync.Mutex

	device   *device.Device
	flags    AccessFlags
	size     int
	handle   compute.BufferHandle
	observer obs.Observer
}

// New allocates a Buffer against dev with the given access flags and byte
// size. The Buffer reports copy traffic to dev's installed Observer,
// defaulting to a no-op when dev has none set.
func New(dev *device.Device, flags AccessFlags, size int) (*Buffer, error) {
	handle, res := dev.Adapter().CreateBuffer(bufferContext(dev), flags, size)
	if !res.Ok() {
		return nil, errs.NewDeviceErrorWithResult("CREATE_BUFFER", dev.ID(), errs.BufferConstructionError, int(res))
	}
	observer := dev.Observer()
	if observer == nil {
		observer = obs.NoOpObserver{}
	}
	return &Buffer{device: dev, flags: flags, size: size, handle: handle, observer: observer}, nil
}

// bufferContext reaches into the device's context under its mutex;
// buffers are always allocated against the owning device's own context.
func bufferContext(dev *device.Device) compute.ContextHandle {
	var ctx compute.ContextHandle
	dev.ClContext(func(c compute.ContextHandle) { ctx = c })
	return ctx
}

// Size returns the buffer's byte size.
func (b *Buffer) Size() int { return b.size }

// Flags returns the buffer's access flags.
func (b *Buffer) Flags() AccessFlags { return b.flags }

// Device returns the owning device.
func (b *Buffer) Device() *device.Device { return b.device }

// Handle returns the raw adapter buffer handle, used by Kernel when
// binding a buffer argument.
func (b *Buffer) Handle() compute.BufferHandle { return b.handle }

// CopyFrom copies min(Size(), n) bytes from host into device memory via
// map/memcpy/unmap on the owning device's queue.
func (b *Buffer) CopyFrom(host []byte, n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	toCopy := n
	if toCopy > b.size {
		toCopy = b.size
	}
	if toCopy > len(host) {
		toCopy = len(host)
	}

	staging := getStaging(toCopy)
	defer putStaging(staging)
	copy(staging[:toCopy], host[:toCopy])

	var copyErr error
	b.device.ClQueue(func(q compute.QueueHandle) {
		mapped, res := b.device.Adapter().MapBuffer(q, b.handle, compute.MapWrite, toCopy)
		if !res.Ok() {
			copyErr = errs.NewDeviceErrorWithResult("MAP_BUFFER", b.device.ID(), errs.BufferMapError, int(res))
			return
		}
		copy(mapped, staging[:toCopy])
		if res := b.device.Adapter().UnmapBuffer(q, b.handle, mapped); !res.Ok() {
			copyErr = errs.NewDeviceErrorWithResult("UNMAP_BUFFER", b.device.ID(), errs.BufferMapError, int(res))
		}
	})
	b.observer.ObserveBufferCopy(uint64(toCopy), true, copyErr == nil)
	return copyErr
}

// CopyTo copies min(Size(), n) bytes from device memory into host via
// map/memcpy/unmap, followed by a queue finish.
func (b *Buffer) CopyTo(host []byte, n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	toCopy := n
	if toCopy > b.size {
		toCopy = b.size
	}
	if toCopy > len(host) {
		toCopy = len(host)
	}

	staging := getStaging(toCopy)
	defer putStaging(staging)

	var copyErr error
	b.device.ClQueue(func(q compute.QueueHandle) {
		mapped, res := b.device.Adapter().MapBuffer(q, b.handle, compute.MapRead, toCopy)
		if !res.Ok() {
			copyErr = errs.NewDeviceErrorWithResult("MAP_BUFFER", b.device.ID(), errs.BufferMapError, int(res))
			return
		}
		copy(staging[:toCopy], mapped)
		if res := b.device.Adapter().UnmapBuffer(q, b.handle, mapped); !res.Ok() {
			copyErr = errs.NewDeviceErrorWithResult("UNMAP_BUFFER", b.device.ID(), errs.BufferMapError, int(res))
			return
		}
		if res := b.device.Adapter().Finish(q); !res.Ok() {
			copyErr = errs.NewDeviceErrorWithResult("FINISH", b.device.ID(), errs.BufferMapError, int(res))
		}
	})
	b.observer.ObserveBufferCopy(uint64(toCopy), false, copyErr == nil)
	if copyErr != nil {
		return copyErr
	}
	copy(host[:toCopy], staging[:toCopy])
	return nil
}

// Close releases the underlying device buffer.
func (b *Buffer) Close() error {
	b.device.Adapter().ReleaseBuffer(b.handle)
	return nil
}
