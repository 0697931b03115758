// Package hostio models the host-language array/bitmap bridge the
// runtime's Task callbacks pull input from and push results to. How a
// host array or bitmap exposes its backing bytes is the bridge's own
// concern; this package only defines the minimal acquire/release
// contract a Task's Configure/Finish callbacks drive against, plus an
// in-process Memory implementation.
package hostio

import (
	"fmt"
	"sync"
)

// shardSize bounds the granularity of Memory's range locking, so
// parallel Task configure/finish callbacks from different Workers don't
// serialize on one lock.
const shardSize = 64 * 1024

// HostSource is a readable host-side byte region a Task's Configure
// callback can pull bytes from into a device Buffer via Buffer.CopyFrom.
// Acquire returns the region's bytes plus a release func that must be
// called exactly once when the caller is done with the slice.
type HostSource interface {
	Acquire(offset, length int) (data []byte, release func(), err error)
	Len() int
}

// HostSink is a writable host-side byte region a Task's Finish callback
// can push bytes into from a device Buffer via Buffer.CopyTo.
type HostSink interface {
	AcquireWritable(offset, length int) (data []byte, release func(), err error)
	Len() int
}

// Memory is an in-process HostSource/HostSink backed by a single byte
// slice with sharded range locks.
type Memory struct {
	data   []byte
	shards []sync.RWMutex
}

// NewMemory allocates a Memory region of size bytes.
func NewMemory(size int) *Memory {
	numShards := (size + shardSize - 1) / shardSize
	if numShards == 0 {
		numShards = 1
	}
	return &Memory{
		data:   make([]byte, size),
		shards: make([]sync.RWMutex, numShards),
	}
}

func (m *Memory) shardRange(off, length int) (start, end int) {
	start = off / shardSize
	end = (off + length - 1) / shardSize
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	if end < start {
		end = start
	}
	return start, end
}

// Len returns the region's total byte count.
func (m *Memory) Len() int { return len(m.data) }

func (m *Memory) checkRange(offset, length int) error {
	if offset < 0 || length < 0 || offset+length > len(m.data) {
		return fmt.Errorf("hostio: range [%d,%d) out of bounds for region of size %d", offset, offset+length, len(m.data))
	}
	return nil
}

// Acquire returns a read-locked view of [offset, offset+length). The
// returned slice aliases the backing array directly; callers must call
// release exactly once and must not retain the slice past that call.
func (m *Memory) Acquire(offset, length int) ([]byte, func(), error) {
	if err := m.checkRange(offset, length); err != nil {
		return nil, nil, err
	}
	start, end := m.shardRange(offset, length)
	for i := start; i <= end; i++ {
		m.shards[i].RLock()
	}
	release := func() {
		for i := start; i <= end; i++ {
			m.shards[i].RUnlock()
		}
	}
	return m.data[offset : offset+length], release, nil
}

// AcquireWritable returns a write-locked view of [offset, offset+length).
func (m *Memory) AcquireWritable(offset, length int) ([]byte, func(), error) {
	if err := m.checkRange(offset, length); err != nil {
		return nil, nil, err
	}
	start, end := m.shardRange(offset, length)
	for i := start; i <= end; i++ {
		m.shards[i].Lock()
	}
	release := func() {
		for i := start; i <= end; i++ {
			m.shards[i].Unlock()
		}
	}
	return m.data[offset : offset+length], release, nil
}

var (
	_ HostSource = (*Memory)(nil)
	_ HostSink   = (*Memory)(nil)
)
