package pme

import (
	"sync"

	"github.com/parallelme/pme/internal/compute"
	"github.com/parallelme/pme/internal/hostio"
)

// MockAdapter wraps a compute.Simulated adapter and tracks call counts,
// for host applications that want to assert on interaction counts without
// depending on internal/compute directly.
type MockAdapter struct {
	*compute.Simulated

	mu            sync.Mutex
	loadCalls     int
	enqueueCalls  int
	setArgCalls   int
	bufferCreates int
}

// NewMockAdapter creates a MockAdapter with the given device topology,
// defaulting to one CPU and one GPU device when types is empty.
func NewMockAdapter(types ...compute.DeviceType) *MockAdapter {
	sim := compute.NewSimulated()
	if len(types) > 0 {
		sim.WithDevices(types...)
	}
	return &MockAdapter{Simulated: sim}
}

func (m *MockAdapter) Load() bool {
	m.mu.Lock()
	m.loadCalls++
	m.mu.Unlock()
	return m.Simulated.Load()
}

func (m *MockAdapter) EnqueueNDRange(q compute.QueueHandle, k compute.KernelHandle, offset, workSize int) compute.Result {
	m.mu.Lock()
	m.enqueueCalls++
	m.mu.Unlock()
	return m.Simulated.EnqueueNDRange(q, k, offset, workSize)
}

func (m *MockAdapter) SetKernelArg(k compute.KernelHandle, index int, data []byte) compute.Result {
	m.mu.Lock()
	m.setArgCalls++
	m.mu.Unlock()
	return m.Simulated.SetKernelArg(k, index, data)
}

func (m *MockAdapter) CreateBuffer(ctx compute.ContextHandle, flags compute.AccessFlags, bytes int) (compute.BufferHandle, compute.Result) {
	m.mu.Lock()
	m.bufferCreates++
	m.mu.Unlock()
	return m.Simulated.CreateBuffer(ctx, flags, bytes)
}

// CallCounts returns the number of times each tracked method has been
// called.
func (m *MockAdapter) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"load":          m.loadCalls,
		"enqueue":       m.enqueueCalls,
		"set_arg":       m.setArgCalls,
		"buffer_create": m.bufferCreates,
	}
}

var _ compute.Adapter = (*MockAdapter)(nil)

// MockHostSource is an in-memory hostio.HostSource/HostSink test double,
// letting Task-level tests exercise Configure/Finish callbacks without a
// real host-language array/bitmap bridge.
type MockHostSource struct {
	*hostio.Memory
}

// NewMockHostSource allocates a MockHostSource of the given size,
// pre-populated with data if non-nil (truncated or zero-padded to size).
func NewMockHostSource(size int, data []byte) *MockHostSource {
	m := &MockHostSource{Memory: hostio.NewMemory(size)}
	if len(data) > 0 {
		w, release, err := m.AcquireWritable(0, min(size, len(data)))
		if err == nil {
			copy(w, data)
			release()
		}
	}
	return m
}

var (
	_ hostio.HostSource = (*MockHostSource)(nil)
	_ hostio.HostSink   = (*MockHostSource)(nil)
)
