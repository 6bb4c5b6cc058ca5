package dataset

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/nimbo/cftime"
	"github.com/arloliu/nimbo/errs"
	"github.com/arloliu/nimbo/format"
	"github.com/arloliu/nimbo/index"
	"github.com/arloliu/nimbo/internal/pool"
)

// Attribute names with CF-convention semantics. No other attribute affects
// the decode and encode pipelines.
const (
	// AttrFillValue is the raw sentinel denoting "no data" for a variable.
	AttrFillValue = "_FillValue"
	// AttrScaleFactor multiplies raw values on decode.
	AttrScaleFactor = "scale_factor"
	// AttrAddOffset is added to scaled values on decode.
	AttrAddOffset = "add_offset"
	// AttrUnits describes the values; a "<unit> since <date>" form makes the
	// variable a time axis.
	AttrUnits = "units"
)

// rawAccessor is the transfer surface the CF pipelines run on. *Variable
// implements it for a single dataset; multiVariable implements the read side
// across an aggregate.
type rawAccessor interface {
	Name() string
	Type() format.DataType
	Shape() []int
	kernel() convKernel
	resolveRead(sels []index.Selector) (index.Section, error)
	resolveWrite(sels []index.Selector) (index.Section, error)
	readSection(sec index.Section) (any, error)
	writeSection(sec index.Section, data any) error
}

// CFVariable applies the CF convention around a raw variable view.
//
// The decode pipeline runs on every read, in fixed order: elements bit-equal
// to _FillValue are flagged missing, non-missing elements are multiplied by
// scale_factor and offset by add_offset, and a time-axis units attribute
// turns the numeric values into time.Time instants. Each stage is skipped
// when its attribute is absent; scale, offset and time never apply to
// character or string variables.
//
// The encode pipeline on writes is the exact structural inverse: instants
// are encoded back to numbers, missing elements are substituted with
// _FillValue, the offset is subtracted, the scale divided out, and the
// result is narrowed to the variable's native type.
//
// Attributes are consulted on every call, never cached: changing
// scale_factor between two reads changes the second read's result.
type CFVariable struct {
	raw   rawAccessor
	attrs Attributes
}

// Name returns the variable's name.
func (c *CFVariable) Name() string { return c.raw.Name() }

// Type returns the variable's native storage element type. Decoded values
// may be wider (float64) or instants, depending on the attributes.
func (c *CFVariable) Type() format.DataType { return c.raw.Type() }

// Shape returns the current extents in logical order.
func (c *CFVariable) Shape() []int { return c.raw.Shape() }

// Rank returns the number of dimensions.
func (c *CFVariable) Rank() int { return len(c.raw.Shape()) }

// Attrs returns the variable's attribute view.
func (c *CFVariable) Attrs() Attributes { return c.attrs }

// Get reads the selected elements and runs the decode pipeline. One selector
// per dimension is required; a rank-0 variable takes none. The result's
// Values slice holds the native type when no numeric stage applied, float64
// after scaling, or time.Time for a time axis.
func (c *CFVariable) Get(sels ...index.Selector) (*Masked, error) {
	sec, err := c.raw.resolveRead(sels)
	if err != nil {
		return nil, err
	}

	data, err := c.raw.readSection(sec)
	if err != nil {
		return nil, err
	}

	return c.decode(data, sec.Size(), sec.Shape())
}

// GetAll reads and decodes the whole variable.
func (c *CFVariable) GetAll() (*Masked, error) {
	return c.Get(fullSelection(c.raw.Shape())...)
}

// Set encodes value and writes it into the selected elements.
//
// Accepted values: a *Masked (its missing flags drive fill substitution), a
// []time.Time or time.Time for a time axis, a native slice, a []float64 or
// []int, or a single scalar broadcast over the selection. Explicit bounds may
// address records beyond a record dimension's current extent; the variable
// grows to fit.
func (c *CFVariable) Set(value any, sels ...index.Selector) error {
	sec, err := c.raw.resolveWrite(sels)
	if err != nil {
		return err
	}

	data, err := c.encode(value, sec.Size())
	if err != nil {
		return err
	}

	return c.raw.writeSection(sec, data)
}

// SetAll encodes value and replaces the whole variable.
func (c *CFVariable) SetAll(value any) error {
	return c.Set(value, fullSelection(c.raw.Shape())...)
}

// decode runs the read pipeline: mask, scale, offset, time.
func (c *CFVariable) decode(data any, n int, shape []int) (*Masked, error) {
	kern := c.raw.kernel()
	dtype := c.raw.Type()

	var missing []bool
	if fv, ok := c.attrs.Get(AttrFillValue); ok {
		fill, err := kern.coerceScalar(scalarAttr(fv))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", AttrFillValue, err)
		}
		flags := make([]bool, n)
		if kern.maskEqual(data, fill, flags) {
			missing = flags
		}
	}

	values := data

	scale, hasScale := c.attrFloat(AttrScaleFactor)
	offset, hasOffset := c.attrFloat(AttrAddOffset)
	if (hasScale || hasOffset) && !dtype.IsText() {
		widened := make([]float64, n)
		kern.toFloat64(data, widened)
		for i := range widened {
			if missing != nil && missing[i] {
				continue
			}
			if hasScale {
				widened[i] *= scale
			}
			if hasOffset {
				widened[i] += offset
			}
		}
		values = widened
	}

	units, isTime, err := c.timeAxis()
	if err != nil {
		return nil, err
	}
	if isTime {
		numeric, ok := values.([]float64)
		if !ok {
			numeric = make([]float64, n)
			kern.toFloat64(data, numeric)
		}
		instants := make([]time.Time, n)
		for i, v := range numeric {
			if missing != nil && missing[i] {
				continue
			}
			instants[i] = units.Decode(v)
		}
		values = instants
	}

	return &Masked{Values: values, Missing: missing, Shape: shape}, nil
}

// encode runs the write pipeline: time, fill substitution, offset, scale,
// narrowing. Fill substitution only touches missing elements and the inverse
// rescale only non-missing ones, so the two commute; the rescale runs first
// here to keep the numeric work in one widened buffer.
func (c *CFVariable) encode(value any, n int) (any, error) {
	kern := c.raw.kernel()
	dtype := c.raw.Type()

	vals := value
	var missing []bool
	if m, ok := value.(*Masked); ok {
		vals = m.Values
		if m.Missing != nil {
			if len(m.Missing) != n {
				return nil, shapeErr(len(m.Missing), n)
			}
			missing = m.Missing
		}
	}

	units, isTime, err := c.timeAxis()
	if err != nil {
		return nil, err
	}

	switch t := vals.(type) {
	case time.Time:
		if !isTime {
			return nil, fmt.Errorf("%w: instant written to variable %q without a time-axis units attribute",
				errs.ErrInvalidValueType, c.raw.Name())
		}
		vals = units.Encode(t)
	case []time.Time:
		if !isTime {
			return nil, fmt.Errorf("%w: instants written to variable %q without a time-axis units attribute",
				errs.ErrInvalidValueType, c.raw.Name())
		}
		if len(t) != n {
			return nil, shapeErr(len(t), n)
		}
		numeric := make([]float64, n)
		for i, instant := range t {
			if missing != nil && missing[i] {
				continue
			}
			numeric[i] = units.Encode(instant)
		}
		vals = numeric
	}

	var native any

	scale, hasScale := c.attrFloat(AttrScaleFactor)
	offset, hasOffset := c.attrFloat(AttrAddOffset)
	if (hasScale || hasOffset) && !dtype.IsText() {
		widened, release := pool.GetFloat64Slice(n)
		defer release()

		if err := c.widen(vals, widened); err != nil {
			return nil, err
		}
		for i := range widened {
			if missing != nil && missing[i] {
				continue
			}
			if hasOffset {
				widened[i] -= offset
			}
			if hasScale {
				widened[i] /= scale
			}
		}
		native = kern.fromFloat64(widened)
	} else {
		native, err = kern.coerce(vals, n)
		if err != nil {
			return nil, err
		}
	}

	if anyMissing(missing) {
		fv, ok := c.attrs.Get(AttrFillValue)
		if !ok {
			return nil, fmt.Errorf("%w: variable %q", errs.ErrNoFillValue, c.raw.Name())
		}
		fill, err := kern.coerceScalar(scalarAttr(fv))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", AttrFillValue, err)
		}
		kern.setMissing(native, fill, missing)
	}

	return native, nil
}

// widen fills dst with the float64 form of vals. Scalars broadcast; native
// slices go through the kernel.
func (c *CFVariable) widen(vals any, dst []float64) error {
	n := len(dst)

	switch v := vals.(type) {
	case []float64:
		if len(v) != n {
			return shapeErr(len(v), n)
		}
		copy(dst, v)
	case []int:
		if len(v) != n {
			return shapeErr(len(v), n)
		}
		for i, x := range v {
			dst[i] = float64(x)
		}
	case float64, float32, int, int64:
		f, _ := toFloat64Scalar(v)
		for i := range dst {
			dst[i] = f
		}
	default:
		native, err := c.raw.kernel().coerce(vals, n)
		if err != nil {
			return err
		}
		c.raw.kernel().toFloat64(native, dst)
	}

	return nil
}

// timeAxis derives the variable's time axis from the units attribute, fresh
// on every call. A units string that does not follow the time pattern is
// plain description (isTime false, no error); one that follows the pattern
// but fails to parse is a hard error.
func (c *CFVariable) timeAxis() (cftime.Units, bool, error) {
	if c.raw.Type().IsText() {
		return cftime.Units{}, false, nil
	}

	raw, ok := c.attrs.Get(AttrUnits)
	if !ok {
		return cftime.Units{}, false, nil
	}
	text, ok := scalarAttr(raw).(string)
	if !ok {
		return cftime.Units{}, false, nil
	}

	units, err := cftime.Parse(text)
	if err != nil {
		if errors.Is(err, errs.ErrNotTimeUnits) {
			return cftime.Units{}, false, nil
		}

		return cftime.Units{}, false, err
	}

	return units, true, nil
}

// attrFloat reads a numeric attribute as float64.
func (c *CFVariable) attrFloat(name string) (float64, bool) {
	raw, ok := c.attrs.Get(name)
	if !ok {
		return 0, false
	}

	return toFloat64Scalar(scalarAttr(raw))
}

func anyMissing(missing []bool) bool {
	for _, m := range missing {
		if m {
			return true
		}
	}

	return false
}

// fullSelection builds one All selector per dimension.
func fullSelection(shape []int) []index.Selector {
	sels := make([]index.Selector, len(shape))
	for i := range sels {
		sels[i] = index.All()
	}

	return sels
}
