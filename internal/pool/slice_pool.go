package pool

import "sync"

// float64SlicePool reuses the widened scratch buffers the attribute decode
// and encode pipelines stage values through.
var float64SlicePool = sync.Pool{
	New: func() any { return &[]float64{} },
}

// GetFloat64Slice retrieves and resizes a float64 slice from the pool.
//
// The returned slice has exactly the requested length. If the pooled slice
// has insufficient capacity, a new slice is allocated. The caller must call
// the returned cleanup function to return the slice to the pool.
//
// Example:
//
//	scratch, cleanup := pool.GetFloat64Slice(1000)
//	defer cleanup()
//	// Use scratch slice...
func GetFloat64Slice(size int) ([]float64, func()) {
	ptr, _ := float64SlicePool.Get().(*[]float64)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]float64, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { float64SlicePool.Put(ptr) }
}
