package program_test

import (
	"testing"

	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/errs"
	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/program"
	"github.com/stretchr/testify/require"
)

func newTestDevices(t *testing.T) ([]*device.Device, *compute.Simulated) {
	t.Helper()
	adapter := compute.NewSimulated()
	adapter.Load()
	handles, res := adapter.Enumerate()
	require.True(t, res.Ok())

	devs := make([]*device.Device, len(handles))
	for i, h := range handles {
		d, err := device.New(i, adapter, h)
		require.NoError(t, err)
		devs[i] = d
	}
	return devs, adapter
}

func TestProgramBuildsOnEveryDevice(t *testing.T) {
	devs, _ := newTestDevices(t)

	p, err := program.New(devs, "__kernel void identity() {}", "")
	require.NoError(t, err)

	for _, d := range devs {
		_, ok := p.HandleFor(d.ID())
		require.True(t, ok, "expected a compiled program handle for device %d", d.ID())
	}
}

func TestProgramCompilationFailureCarriesBuildLog(t *testing.T) {
	devs, _ := newTestDevices(t)

	_, err := program.New(devs, "__kernel void bad() { __SYNTAX_ERROR__ }", "")
	require.Error(t, err)

	var pmeErr *errs.Error
	require.ErrorAs(t, err, &pmeErr)
	require.Equal(t, errs.ProgramCompilationError, pmeErr.Code)
	require.Contains(t, pmeErr.Msg, "unexpected token")
}
