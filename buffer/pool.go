package buffer

import "sync"

// Pooled byte slices for Buffer.CopyFrom/CopyTo staging: size-bucketed
// sync.Pool so the copy hot path doesn't allocate per transfer. Buckets
// suit typical kernel argument payloads (FLOAT4/RGBA multiples).
//
// Uses the *[]byte pattern to avoid sync.Pool interface allocation
// overhead.

const (
	size4k  = 4 * 1024
	size64k = 64 * 1024
	size1m  = 1024 * 1024
	size16m = 16 * 1024 * 1024
)

var globalStagingPool = struct {
	pool4k  sync.Pool
	pool64k sync.Pool
	pool1m  sync.Pool
	pool16m sync.Pool
}{
	pool4k:  sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
	pool1m:  sync.Pool{New: func() any { b := make([]byte, size1m); return &b }},
	pool16m: sync.Pool{New: func() any { b := make([]byte, size16m); return &b }},
}

// getStaging returns a pooled buffer of at least the requested size.
// Caller must call putStaging when done.
func getStaging(size int) []byte {
	switch {
	case size <= size4k:
		return (*globalStagingPool.pool4k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalStagingPool.pool64k.Get().(*[]byte))[:size]
	case size <= size1m:
		return (*globalStagingPool.pool1m.Get().(*[]byte))[:size]
	case size <= size16m:
		return (*globalStagingPool.pool16m.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// putStaging returns a buffer to the pool. The buffer's capacity
// determines which pool it goes to; non-standard capacities (larger than
// every bucket) are simply dropped for GC to reclaim.
func putStaging(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size4k:
		globalStagingPool.pool4k.Put(&buf)
	case size64k:
		globalStagingPool.pool64k.Put(&buf)
	case size1m:
		globalStagingPool.pool1m.Put(&buf)
	case size16m:
		globalStagingPool.pool16m.Put(&buf)
	}
}
