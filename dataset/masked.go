package dataset

import (
	"fmt"
	"time"
)

// Masked pairs flat element values with per-element missing flags. It is the
// result of the CF decode pipeline and the input form for masked writes.
type Masked struct {
	// Values holds the flat elements in logical (row-major, slowest
	// dimension first) order: the variable's native slice when no numeric
	// stage applied, []float64 after scaling, or []time.Time after time
	// decoding.
	Values any

	// Missing flags elements that hold no data, parallel to Values. nil when
	// every element is present. The value of a missing element is opaque: it
	// was never scaled, offset or time-decoded.
	Missing []bool

	// Shape is the logical result shape after squeezing point-indexed
	// dimensions. Empty for scalar results.
	Shape []int
}

// Rank returns the number of result dimensions.
func (m *Masked) Rank() int { return len(m.Shape) }

// Size returns the number of elements. A rank-0 result holds one element.
func (m *Masked) Size() int {
	n := 1
	for _, c := range m.Shape {
		n *= c
	}

	return n
}

// IsMissing reports whether element i is flagged missing.
func (m *Masked) IsMissing(i int) bool {
	return m.Missing != nil && m.Missing[i]
}

// Scalar returns the single element of a rank-0 result and whether it is
// present. The value is opaque when present is false.
func (m *Masked) Scalar() (value any, present bool) {
	return elemAt(m.Values, 0), !m.IsMissing(0)
}

// elemAt returns element i of a flat values slice as a bare scalar.
func elemAt(values any, i int) any {
	switch v := values.(type) {
	case []int8:
		return v[i]
	case []uint8:
		return v[i]
	case []int16:
		return v[i]
	case []uint16:
		return v[i]
	case []int32:
		return v[i]
	case []uint32:
		return v[i]
	case []int64:
		return v[i]
	case []uint64:
		return v[i]
	case []float32:
		return v[i]
	case []float64:
		return v[i]
	case []string:
		return v[i]
	case []time.Time:
		return v[i]
	default:
		panic(fmt.Sprintf("dataset: unsupported element slice %T", values))
	}
}
