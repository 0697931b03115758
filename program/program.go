// Package program holds the result of compiling one source string against
// every enumerated Device, producing one compiled program per device.
package program

import (
	"sync"

	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/errs"
	"github.com/parallelme/pme/internal/compute"
)

// Program holds one compiled per-device program handle for every Device
// it was built against. Different platforms may select different
// targets, so the design never assumes one compiled binary is portable
// across devices.
type Program struct {
	mu      sync.Mutex
	source  string
	flags   string
	devices []*device.Device
	handles map[int]compute.ProgramHandle // device id -> per-device program handle
}

// New compiles source against every Device in devices, returning
// *errs.Error{Code: ProgramCompilationError} carrying the build log on
// the first failure.
func New(devices []*device.Device, source string, flags string) (*Program, error) {
	p := &Program{
		source:  source,
		flags:   flags,
		devices: devices,
		handles: make(map[int]compute.ProgramHandle, len(devices)),
	}

	for _, dev := range devices {
		var ctx compute.ContextHandle
		dev.ClContext(func(c compute.ContextHandle) { ctx = c })

		h, res := dev.Adapter().CreateProgramFromSource(ctx, source)
		if !res.Ok() {
			return nil, errs.NewDeviceErrorWithResult("CREATE_PROGRAM", dev.ID(), errs.ProgramCompilationError, int(res))
		}

		if res := dev.Adapter().BuildProgram(h, dev.Handle(), flags); !res.Ok() {
			log := dev.Adapter().GetBuildLog(h, dev.Handle())
			return nil, errs.NewDeviceError("BUILD_PROGRAM", dev.ID(), errs.ProgramCompilationError, log)
		}

		p.handles[dev.ID()] = h
	}

	return p, nil
}

// ClPrograms runs fn with the program mutex held, exposing the per-device
// handle map.
func (p *Program) ClPrograms(fn func(handles map[int]compute.ProgramHandle)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.handles)
}

// HandleFor returns the compiled program handle for the given device id.
func (p *Program) HandleFor(deviceID int) (compute.ProgramHandle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handles[deviceID]
	return h, ok
}

// Close releases every per-device compiled program.
func (p *Program) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, dev := range p.devices {
		if h, ok := p.handles[dev.ID()]; ok {
			dev.Adapter().ReleaseProgram(h)
		}
	}
	return nil
}
