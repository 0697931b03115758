// Package device owns the (device-id, context, queue) triple for one
// physical compute device and serializes all access to it through an
// internal mutex.
package device

import (
	"sync"

	"github.com/parallelme/pme/errs"
	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/obs"
)

// Type mirrors compute.DeviceType so callers outside internal/ don't need
// to import the internal package just to branch on device class.
type Type = compute.DeviceType

const (
	TypeUnknown     = compute.DeviceTypeUnknown
	TypeCPU         = compute.DeviceTypeCPU
	TypeGPU         = compute.DeviceTypeGPU
	TypeAccelerator = compute.DeviceTypeAccelerator
)

// Device owns one enumerated device's context and queue. All three
// handles (device, queue, context) are reachable only through the
// scoped-mutex accessors below.
type Device struct {
	mu sync.Mutex

	id      int
	typ     Type
	adapter compute.Adapter

	handle  compute.DeviceHandle
	context compute.ContextHandle
	queue   compute.QueueHandle

	observer obs.Observer
}

// New constructs a Device over a raw adapter handle, querying its type
// and creating its context and single command queue.
func New(id int, adapter compute.Adapter, handle compute.DeviceHandle) (*Device, error) {
	typ, res := adapter.DeviceType(handle)
	if !res.Ok() {
		return nil, errs.NewDeviceErrorWithResult("DEVICE_TYPE", id, errs.DeviceConstructionError, int(res))
	}
	if typ == TypeUnknown {
		return nil, errs.NewDeviceError("DEVICE_TYPE", id, errs.DeviceConstructionError, "unrecognized device type")
	}

	ctx, res := adapter.CreateContext(handle)
	if !res.Ok() {
		return nil, errs.NewDeviceErrorWithResult("CREATE_CONTEXT", id, errs.DeviceConstructionError, int(res))
	}

	queue, res := adapter.CreateQueue(ctx, handle)
	if !res.Ok() {
		adapter.ReleaseContext(ctx)
		return nil, errs.NewDeviceErrorWithResult("CREATE_QUEUE", id, errs.DeviceConstructionError, int(res))
	}

	return &Device{
		id:       id,
		typ:      typ,
		adapter:  adapter,
		handle:   handle,
		context:  ctx,
		queue:    queue,
		observer: obs.NoOpObserver{},
	}, nil
}

// ID returns the device's stable zero-based enumeration index.
func (d *Device) ID() int { return d.id }

// TypeOf returns the device's compute class.
func (d *Device) TypeOf() Type { return d.typ }

// Adapter exposes the underlying compute adapter so Buffer/Program/Kernel
// in sibling packages can issue calls scoped to this device.
func (d *Device) Adapter() compute.Adapter { return d.adapter }

// Handle returns the raw adapter device handle.
func (d *Device) Handle() compute.DeviceHandle { return d.handle }

// SetObserver installs the Observer Buffers created against this Device
// report copy traffic to. Runtime calls this once, right after building
// its MetricsObserver, before any Task can reach a Buffer constructor.
func (d *Device) SetObserver(o obs.Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o == nil {
		o = obs.NoOpObserver{}
	}
	d.observer = o
}

// Observer returns the Device's currently installed Observer, used by
// buffer.New to wire copy-traffic reporting without its own Observer
// parameter.
func (d *Device) Observer() obs.Observer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observer
}

// ClDevice runs fn with the device mutex held, exposing the raw device
// handle.
func (d *Device) ClDevice(fn func(h compute.DeviceHandle)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.handle)
}

// ClQueue runs fn with the device mutex held, exposing the command queue.
func (d *Device) ClQueue(fn func(q compute.QueueHandle)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.queue)
}

// ClContext runs fn with the device mutex held, exposing the context.
func (d *Device) ClContext(fn func(ctx compute.ContextHandle)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.context)
}

// Close releases the queue then the context. The underlying device handle
// itself is never released, keeping compatibility with 1.1-era device
// lifetime semantics.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapter.ReleaseQueue(d.queue)
	d.adapter.ReleaseContext(d.context)
	return nil
}
