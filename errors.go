package pme

import "github.com/parallelme/pme/errs"

// Error, ErrorCode and the taxonomy constants live in package errs so that
// device/buffer/program/kernel (which the root pme package imports) can
// construct them without an import cycle. They are re-exported here under
// their original names since this root package is the module's public
// face; callers only ever need the one import.
type (
	Error     = errs.Error
	ErrorCode = errs.ErrorCode
)

const (
	RuntimeConstructionError = errs.RuntimeConstructionError
	DeviceConstructionError  = errs.DeviceConstructionError
	ProgramCompilationError  = errs.ProgramCompilationError
	KernelConstructionError  = errs.KernelConstructionError
	KernelArgumentError      = errs.KernelArgumentError
	BufferConstructionError  = errs.BufferConstructionError
	BufferMapError           = errs.BufferMapError
	WorkerExecutionError     = errs.WorkerExecutionError
)

var (
	NewError                 = errs.NewError
	NewErrorWithResult       = errs.NewErrorWithResult
	NewDeviceError           = errs.NewDeviceError
	NewDeviceErrorWithResult = errs.NewDeviceErrorWithResult
	WrapError                = errs.WrapError
	IsCode                   = errs.IsCode
)
