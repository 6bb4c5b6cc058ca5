package dataset

import (
	"fmt"
	"math"

	"github.com/arloliu/nimbo/errs"
	"github.com/arloliu/nimbo/format"
)

// convKernel adapts value conversion to one native element type. A kernel is
// resolved once when a variable handle is created and reused for every
// transfer, so no per-element type dispatch happens on hot paths.
//
// Methods taking a data argument require a native slice of the kernel's
// element type and panic otherwise; coerce and coerceScalar are the only
// entry points for caller-supplied values.
type convKernel interface {
	// alloc returns a native slice of length n.
	alloc(n int) any

	// coerce converts value into a fresh native slice of exactly n elements.
	// Native slices are copied, []float64 and []int slices are converted
	// element-wise, and scalars broadcast to all n elements. Slice lengths
	// other than n fail with errs.ErrShapeMismatch; unsupported value types
	// fail with errs.ErrInvalidValueType.
	coerce(value any, n int) (any, error)

	// coerceScalar converts a single value to a native scalar.
	coerceScalar(value any) (any, error)

	// toFloat64 widens the native slice data into dst, element for element.
	toFloat64(data any, dst []float64)

	// fromFloat64 narrows vals into a fresh native slice, rounding half away
	// from zero for integer element types.
	fromFloat64(vals []float64) any

	// maskEqual flags every element of data bit-equal to fill and reports
	// whether any element matched. fill must come from coerceScalar.
	maskEqual(data any, fill any, missing []bool) bool

	// setMissing overwrites flagged elements of data with fill.
	setMissing(data any, fill any, missing []bool)

	// copyRange copies n elements from src[srcOff:] into dst[dstOff:], both
	// native slices.
	copyRange(dst any, dstOff int, src any, srcOff, n int)
}

// kernelForType returns the conversion kernel for one element type. Char
// shares the uint8 kernel with UByte; the text/numeric distinction lives in
// the CF pipeline, not here.
func kernelForType(dt format.DataType) (convKernel, error) {
	switch dt {
	case format.TypeByte:
		return intKernel[int8]{}, nil
	case format.TypeUByte, format.TypeChar:
		return intKernel[uint8]{}, nil
	case format.TypeShort:
		return intKernel[int16]{}, nil
	case format.TypeUShort:
		return intKernel[uint16]{}, nil
	case format.TypeInt:
		return intKernel[int32]{}, nil
	case format.TypeUInt:
		return intKernel[uint32]{}, nil
	case format.TypeInt64:
		return intKernel[int64]{}, nil
	case format.TypeUInt64:
		return intKernel[uint64]{}, nil
	case format.TypeFloat:
		return floatKernel[float32]{bits: func(v float32) uint64 { return uint64(math.Float32bits(v)) }}, nil
	case format.TypeDouble:
		return floatKernel[float64]{bits: math.Float64bits}, nil
	case format.TypeString:
		return stringKernel{}, nil
	default:
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidDataType, dt)
	}
}

func shapeErr(got, want int) error {
	return fmt.Errorf("%w: got %d elements, selection holds %d", errs.ErrShapeMismatch, got, want)
}

func valueErr(value any) error {
	return fmt.Errorf("%w: cannot store %T elements", errs.ErrInvalidValueType, value)
}

// intKernel implements convKernel for the integer element types, including
// Char (uint8 elements). Narrowing from float64 rounds half away from zero.
type intKernel[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64] struct{}

func (intKernel[T]) alloc(n int) any { return make([]T, n) }

func (intKernel[T]) coerce(value any, n int) (any, error) {
	out := make([]T, n)

	switch v := value.(type) {
	case []T:
		if len(v) != n {
			return nil, shapeErr(len(v), n)
		}
		copy(out, v)
	case []float64:
		if len(v) != n {
			return nil, shapeErr(len(v), n)
		}
		for i, f := range v {
			out[i] = T(math.Round(f))
		}
	case []int:
		if len(v) != n {
			return nil, shapeErr(len(v), n)
		}
		for i, x := range v {
			out[i] = T(x)
		}
	case T:
		for i := range out {
			out[i] = v
		}
	case int:
		s := T(v)
		for i := range out {
			out[i] = s
		}
	case int64:
		s := T(v)
		for i := range out {
			out[i] = s
		}
	case float64:
		s := T(math.Round(v))
		for i := range out {
			out[i] = s
		}
	default:
		return nil, valueErr(value)
	}

	return out, nil
}

func (intKernel[T]) coerceScalar(value any) (any, error) {
	switch v := value.(type) {
	case T:
		return v, nil
	case int:
		return T(v), nil
	case int64:
		return T(v), nil
	case float64:
		return T(math.Round(v)), nil
	case float32:
		return T(math.Round(float64(v))), nil
	default:
		return nil, valueErr(value)
	}
}

func (intKernel[T]) toFloat64(data any, dst []float64) {
	for i, v := range data.([]T) {
		dst[i] = float64(v)
	}
}

func (intKernel[T]) fromFloat64(vals []float64) any {
	out := make([]T, len(vals))
	for i, f := range vals {
		out[i] = T(math.Round(f))
	}

	return out
}

func (intKernel[T]) maskEqual(data any, fill any, missing []bool) bool {
	fv := fill.(T)
	found := false
	for i, v := range data.([]T) {
		if v == fv {
			missing[i] = true
			found = true
		}
	}

	return found
}

func (intKernel[T]) setMissing(data any, fill any, missing []bool) {
	fv := fill.(T)
	d := data.([]T)
	for i, m := range missing {
		if m {
			d[i] = fv
		}
	}
}

func (intKernel[T]) copyRange(dst any, dstOff int, src any, srcOff, n int) {
	copy(dst.([]T)[dstOff:dstOff+n], src.([]T)[srcOff:srcOff+n])
}

// floatKernel implements convKernel for float32 and float64 elements. Mask
// comparison uses bit equality so a NaN fill value masks NaN elements, which
// plain == would miss.
type floatKernel[T float32 | float64] struct {
	bits func(T) uint64
}

func (floatKernel[T]) alloc(n int) any { return make([]T, n) }

func (floatKernel[T]) coerce(value any, n int) (any, error) {
	out := make([]T, n)

	switch v := value.(type) {
	case []T:
		if len(v) != n {
			return nil, shapeErr(len(v), n)
		}
		copy(out, v)
	case []float64:
		if len(v) != n {
			return nil, shapeErr(len(v), n)
		}
		for i, f := range v {
			out[i] = T(f)
		}
	case []int:
		if len(v) != n {
			return nil, shapeErr(len(v), n)
		}
		for i, x := range v {
			out[i] = T(x)
		}
	case T:
		for i := range out {
			out[i] = v
		}
	case float64:
		s := T(v)
		for i := range out {
			out[i] = s
		}
	case int:
		s := T(v)
		for i := range out {
			out[i] = s
		}
	case int64:
		s := T(v)
		for i := range out {
			out[i] = s
		}
	default:
		return nil, valueErr(value)
	}

	return out, nil
}

func (floatKernel[T]) coerceScalar(value any) (any, error) {
	switch v := value.(type) {
	case T:
		return v, nil
	case float64:
		return T(v), nil
	case float32:
		return T(v), nil
	case int:
		return T(v), nil
	case int64:
		return T(v), nil
	default:
		return nil, valueErr(value)
	}
}

func (floatKernel[T]) toFloat64(data any, dst []float64) {
	for i, v := range data.([]T) {
		dst[i] = float64(v)
	}
}

func (floatKernel[T]) fromFloat64(vals []float64) any {
	out := make([]T, len(vals))
	for i, f := range vals {
		out[i] = T(f)
	}

	return out
}

func (k floatKernel[T]) maskEqual(data any, fill any, missing []bool) bool {
	fb := k.bits(fill.(T))
	found := false
	for i, v := range data.([]T) {
		if k.bits(v) == fb {
			missing[i] = true
			found = true
		}
	}

	return found
}

func (floatKernel[T]) setMissing(data any, fill any, missing []bool) {
	fv := fill.(T)
	d := data.([]T)
	for i, m := range missing {
		if m {
			d[i] = fv
		}
	}
}

func (floatKernel[T]) copyRange(dst any, dstOff int, src any, srcOff, n int) {
	copy(dst.([]T)[dstOff:dstOff+n], src.([]T)[srcOff:srcOff+n])
}

// stringKernel implements convKernel for String elements. The numeric
// methods are unreachable: the CF pipeline treats text types as identity for
// the scale, offset and time stages.
type stringKernel struct{}

func (stringKernel) alloc(n int) any { return make([]string, n) }

func (stringKernel) coerce(value any, n int) (any, error) {
	out := make([]string, n)

	switch v := value.(type) {
	case []string:
		if len(v) != n {
			return nil, shapeErr(len(v), n)
		}
		copy(out, v)
	case string:
		for i := range out {
			out[i] = v
		}
	default:
		return nil, valueErr(value)
	}

	return out, nil
}

func (stringKernel) coerceScalar(value any) (any, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}

	return nil, valueErr(value)
}

func (stringKernel) toFloat64(any, []float64) {
	panic("dataset: string elements have no numeric form")
}

func (stringKernel) fromFloat64([]float64) any {
	panic("dataset: string elements have no numeric form")
}

func (stringKernel) maskEqual(data any, fill any, missing []bool) bool {
	fv := fill.(string)
	found := false
	for i, v := range data.([]string) {
		if v == fv {
			missing[i] = true
			found = true
		}
	}

	return found
}

func (stringKernel) setMissing(data any, fill any, missing []bool) {
	fv := fill.(string)
	d := data.([]string)
	for i, m := range missing {
		if m {
			d[i] = fv
		}
	}
}

func (stringKernel) copyRange(dst any, dstOff int, src any, srcOff, n int) {
	copy(dst.([]string)[dstOff:dstOff+n], src.([]string)[srcOff:srcOff+n])
}

// scalarAttr unwraps single-element attribute slices. A freshly written
// attribute may still hold the 1-element slice it was put with, while the
// same attribute read back from a file arrives as a bare scalar; consumers
// see the scalar form either way.
func scalarAttr(v any) any {
	switch s := v.(type) {
	case []int8:
		if len(s) == 1 {
			return s[0]
		}
	case []uint8:
		if len(s) == 1 {
			return s[0]
		}
	case []int16:
		if len(s) == 1 {
			return s[0]
		}
	case []uint16:
		if len(s) == 1 {
			return s[0]
		}
	case []int32:
		if len(s) == 1 {
			return s[0]
		}
	case []uint32:
		if len(s) == 1 {
			return s[0]
		}
	case []int64:
		if len(s) == 1 {
			return s[0]
		}
	case []uint64:
		if len(s) == 1 {
			return s[0]
		}
	case []float32:
		if len(s) == 1 {
			return s[0]
		}
	case []float64:
		if len(s) == 1 {
			return s[0]
		}
	case []string:
		if len(s) == 1 {
			return s[0]
		}
	}

	return v
}

// toFloat64Scalar widens any numeric scalar to float64.
func toFloat64Scalar(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
