package device_test

import (
	"testing"
	"time"

	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/errs"
	"github.com/parallelme/pme/internal/compute"
	"github.com/stretchr/testify/require"
)

func TestNewDeviceEnumeratesTypeAndHandles(t *testing.T) {
	adapter := compute.NewSimulated().WithDevices(compute.DeviceTypeCPU, compute.DeviceTypeGPU)
	adapter.Load()

	handles, res := adapter.Enumerate()
	require.True(t, res.Ok())
	require.Len(t, handles, 2)

	d0, err := device.New(0, adapter, handles[0])
	require.NoError(t, err)
	require.Equal(t, 0, d0.ID())
	require.Equal(t, device.TypeCPU, d0.TypeOf())

	d1, err := device.New(1, adapter, handles[1])
	require.NoError(t, err)
	require.Equal(t, device.TypeGPU, d1.TypeOf())
}

func TestNewDeviceUnknownHandleFails(t *testing.T) {
	adapter := compute.NewSimulated()
	adapter.Load()

	_, err := device.New(0, adapter, compute.DeviceHandle(999))
	require.Error(t, err)

	var pmeErr *errs.Error
	require.ErrorAs(t, err, &pmeErr)
	require.Equal(t, errs.DeviceConstructionError, pmeErr.Code)
}

func TestClDeviceAccessorsAreMutexScoped(t *testing.T) {
	adapter := compute.NewSimulated()
	adapter.Load()
	handles, _ := adapter.Enumerate()

	d, err := device.New(0, adapter, handles[0])
	require.NoError(t, err)

	var seenQueue compute.QueueHandle
	ctxSeen := make(chan compute.ContextHandle, 1)
	d.ClQueue(func(q compute.QueueHandle) {
		seenQueue = q
		// A second accessor cannot enter while this one holds the device mutex.
		go d.ClContext(func(ctx compute.ContextHandle) { ctxSeen <- ctx })
		select {
		case <-ctxSeen:
			t.Error("ClContext ran while ClQueue held the device mutex")
		case <-time.After(20 * time.Millisecond):
		}
	})
	require.NotZero(t, seenQueue)

	var seenCtx compute.ContextHandle
	select {
	case seenCtx = <-ctxSeen:
	case <-time.After(time.Second):
		t.Fatal("ClContext never ran after ClQueue released the device mutex")
	}
	require.NotZero(t, seenCtx)

	require.NoError(t, d.Close())
}
