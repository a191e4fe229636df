// Package mempool recycles the float32 buffers that back model input tensors.
package mempool

import "sync"

// step is the bucket granularity in elements.
const step = 1024

var float32Pools sync.Map // size class -> *sync.Pool

// sizeClass rounds n up to a multiple of step so crops of similar width
// share buffers.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func pool(cls int) *sync.Pool {
	p, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetFloat32 returns a buffer of length n. Its contents are undefined.
// Hand it back with PutFloat32 once nothing references it.
func GetFloat32(n int) []float32 {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	buf, ok := pool(cls).Get().([]float32)
	if !ok || cap(buf) < cls {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 returns buf to its pool. Nil and foreign undersized slices are dropped.
func PutFloat32(buf []float32) {
	if cap(buf) < step {
		return
	}
	// Only exact classes go back so Get never hands out a short buffer.
	cls := cap(buf) / step * step
	pool(cls).Put(buf[:cls]) //nolint:staticcheck // slices are the pooled value
}
