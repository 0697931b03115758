package errs

import (
	"errors"
	"fmt"
)

// Error represents a structured runtime error with context and a
// device-compute result code.
type Error struct {
	Op       string    // Operation that failed (e.g., "BUILD_PROGRAM", "ENQUEUE_NDRANGE")
	DeviceID int       // Device id (-1 if not applicable)
	Code     ErrorCode // High-level error category
	Result   int       // Numeric device-compute result code (0 if not applicable)
	Msg      string    // Human-readable message
	Inner    error     // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.DeviceID >= 0 {
		parts = append(parts, fmt.Sprintf("device=%d", e.DeviceID))
	}

	if e.Result != 0 {
		parts = append(parts, fmt.Sprintf("result=%d", e.Result))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("pme: %s (%s)", msg, parts[0])
	}

	return fmt.Sprintf("pme: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support keyed off the error's Code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}

	return false
}

// ErrorCode classifies runtime errors by the subsystem that raised them.
type ErrorCode string

const (
	// RuntimeConstructionError: compute library load failed, or
	// platform/device enumeration failed. Fatal; Runtime is not constructed.
	RuntimeConstructionError ErrorCode = "runtime construction failed"
	// DeviceConstructionError: per-device context/queue creation failed or
	// device type was unrecognized. Fatal for that Device.
	DeviceConstructionError ErrorCode = "device construction failed"
	// ProgramCompilationError: a per-device compile failed. Payload carries
	// the full build log in Msg.
	ProgramCompilationError ErrorCode = "program compilation failed"
	// KernelConstructionError: per-device kernel create failed.
	KernelConstructionError ErrorCode = "kernel construction failed"
	// KernelArgumentError: per-device argument-set failed.
	KernelArgumentError ErrorCode = "kernel argument set failed"
	// BufferConstructionError: buffer allocation failed.
	BufferConstructionError ErrorCode = "buffer construction failed"
	// BufferMapError: buffer map/unmap failed.
	BufferMapError ErrorCode = "buffer map failed"
	// WorkerExecutionError: NDRange enqueue or queue-finish returned non-zero.
	WorkerExecutionError ErrorCode = "worker execution failed"
)

// NewError creates a new structured error with no device or result code.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:       op,
		DeviceID: -1,
		Code:     code,
		Msg:      msg,
	}
}

// NewErrorWithResult creates a new structured error carrying the numeric
// result code a failed device-compute call returned.
func NewErrorWithResult(op string, code ErrorCode, result int) *Error {
	return &Error{
		Op:       op,
		DeviceID: -1,
		Code:     code,
		Result:   result,
		Msg:      fmt.Sprintf("device-compute result code %d", result),
	}
}

// NewDeviceError creates a new device-specific error.
func NewDeviceError(op string, deviceID int, code ErrorCode, msg string) *Error {
	return &Error{
		Op:       op,
		DeviceID: deviceID,
		Code:     code,
		Msg:      msg,
	}
}

// NewDeviceErrorWithResult creates a device-specific error carrying a
// numeric device-compute result code.
func NewDeviceErrorWithResult(op string, deviceID int, code ErrorCode, result int) *Error {
	return &Error{
		Op:       op,
		DeviceID: deviceID,
		Code:     code,
		Result:   result,
		Msg:      fmt.Sprintf("device-compute result code %d", result),
	}
}

// WrapError wraps an existing error with pme context, preserving an inner
// *Error's fields when present.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if pe, ok := inner.(*Error); ok {
		return &Error{
			Op:       op,
			DeviceID: pe.DeviceID,
			Code:     pe.Code,
			Result:   pe.Result,
			Msg:      pe.Msg,
			Inner:    pe.Inner,
		}
	}

	return &Error{
		Op:       op,
		DeviceID: -1,
		Code:     WorkerExecutionError,
		Msg:      inner.Error(),
		Inner:    inner,
	}
}

// IsCode checks if an error matches a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var pmeErr *Error
	if errors.As(err, &pmeErr) {
		return pmeErr.Code == code
	}
	return false
}
