package pme

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("COMPILE_PROGRAM", ProgramCompilationError, "syntax error at line 4")

	if err.Op != "COMPILE_PROGRAM" {
		t.Errorf("Expected Op=COMPILE_PROGRAM, got %s", err.Op)
	}

	if err.Code != ProgramCompilationError {
		t.Errorf("Expected Code=ProgramCompilationError, got %s", err.Code)
	}

	expected := "pme: syntax error at line 4 (op=COMPILE_PROGRAM)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestErrorWithResult(t *testing.T) {
	err := NewErrorWithResult("SET_KERNEL_ARG", KernelArgumentError, -38)

	if err.Result != -38 {
		t.Errorf("Expected Result=-38, got %d", err.Result)
	}

	if err.Code != KernelArgumentError {
		t.Errorf("Expected Code=KernelArgumentError, got %s", err.Code)
	}
}

func TestDeviceError(t *testing.T) {
	err := NewDeviceError("CREATE_QUEUE", 1, DeviceConstructionError, "queue creation failed")

	if err.DeviceID != 1 {
		t.Errorf("Expected DeviceID=1, got %d", err.DeviceID)
	}

	expected := "pme: queue creation failed (op=CREATE_QUEUE)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestDeviceErrorWithResult(t *testing.T) {
	err := NewDeviceErrorWithResult("ENQUEUE_NDRANGE", 0, WorkerExecutionError, -5)

	if err.DeviceID != 0 {
		t.Errorf("Expected DeviceID=0, got %d", err.DeviceID)
	}

	if err.Result != -5 {
		t.Errorf("Expected Result=-5, got %d", err.Result)
	}
}

func TestWrapError(t *testing.T) {
	inner := errors.New("map failed")
	err := WrapError("BUFFER_COPY_FROM", inner)

	if err.Code != WorkerExecutionError {
		t.Errorf("Expected Code=WorkerExecutionError, got %s", err.Code)
	}

	if !errors.Is(err, inner) {
		t.Error("Expected wrapped error to satisfy errors.Is for the inner error")
	}
}

func TestWrapErrorPreservesStructuredInner(t *testing.T) {
	inner := NewDeviceErrorWithResult("MAP_BUFFER", 2, BufferMapError, -4)
	err := WrapError("COPY_TO", inner)

	if err.DeviceID != 2 {
		t.Errorf("Expected DeviceID=2 preserved from inner error, got %d", err.DeviceID)
	}

	if err.Code != BufferMapError {
		t.Errorf("Expected Code=BufferMapError preserved from inner error, got %s", err.Code)
	}

	if err.Result != -4 {
		t.Errorf("Expected Result=-4 preserved from inner error, got %d", err.Result)
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("LOAD", RuntimeConstructionError, "library load failed")

	if !IsCode(err, RuntimeConstructionError) {
		t.Error("IsCode should return true for matching code")
	}

	if IsCode(err, BufferMapError) {
		t.Error("IsCode should return false for non-matching code")
	}

	if IsCode(nil, RuntimeConstructionError) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	a := NewDeviceError("CREATE_CONTEXT", 0, DeviceConstructionError, "bad device type")
	b := &Error{Code: DeviceConstructionError}

	if !errors.Is(a, b) {
		t.Error("expected errors.Is to match structured errors with the same Code")
	}
}
