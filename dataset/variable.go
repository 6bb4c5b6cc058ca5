package dataset

import (
	"github.com/arloliu/nimbo/backend"
	"github.com/arloliu/nimbo/format"
	"github.com/arloliu/nimbo/index"
)

// Variable is the raw strided view of one backend variable: a capability
// handle holding the variable's identity, element kernel and logical
// dimension list. It owns no storage and applies no CF semantics; values
// move between caller and store exactly as stored.
//
// Dimension order is logical throughout the public surface: dimension 0 is
// the slowest-varying. The handle reverses every dimension vector exactly
// once when it crosses into the store.
type Variable struct {
	ds    *Dataset
	id    int
	name  string
	dtype format.DataType
	kern  convKernel

	// dimIDs lists the variable's dimensions in logical order; growable
	// flags the record dimension.
	dimIDs   []int
	growable []bool
}

func newVariable(ds *Dataset, info backend.VarInfo) (*Variable, error) {
	kern, err := kernelForType(info.Type)
	if err != nil {
		return nil, err
	}

	v := &Variable{
		ds:       ds,
		id:       info.ID,
		name:     info.Name,
		dtype:    info.Type,
		kern:     kern,
		dimIDs:   index.Reversed(info.DimIDs),
		growable: make([]bool, len(info.DimIDs)),
	}
	for i, id := range v.dimIDs {
		dim, err := ds.store.Dim(id)
		if err != nil {
			return nil, err
		}
		v.growable[i] = dim.Unlimited
	}

	return v, nil
}

// Name returns the variable's name.
func (v *Variable) Name() string { return v.name }

// Type returns the variable's native element type.
func (v *Variable) Type() format.DataType { return v.dtype }

// Rank returns the number of dimensions. Scalars have rank 0.
func (v *Variable) Rank() int { return len(v.dimIDs) }

// Shape returns the current extents in logical order. The record dimension
// reports the number of records written so far.
func (v *Variable) Shape() []int {
	shape := make([]int, len(v.dimIDs))
	for i, id := range v.dimIDs {
		dim, err := v.ds.store.Dim(id)
		if err != nil {
			// The dimension existed when the handle was created; a failed
			// lookup means the store is gone and the transfer will report it.
			return shape
		}
		shape[i] = dim.Len
	}

	return shape
}

// Size returns the current number of elements.
func (v *Variable) Size() int {
	n := 1
	for _, e := range v.Shape() {
		n *= e
	}

	return n
}

func (v *Variable) kernel() convKernel { return v.kern }

// resolveRead normalizes selectors against the current shape.
func (v *Variable) resolveRead(sels []index.Selector) (index.Section, error) {
	return index.Normalize(v.Shape(), sels...)
}

// resolveWrite normalizes selectors for a write, where explicit bounds may
// address records beyond the record dimension's current extent.
func (v *Variable) resolveWrite(sels []index.Selector) (index.Section, error) {
	return index.NormalizeGrowable(v.Shape(), v.growable, sels...)
}

// Read transfers the selected elements and returns them as a flat native
// slice in logical row-major order, together with the post-squeeze result
// shape. One selector per dimension is required.
func (v *Variable) Read(sels ...index.Selector) (any, []int, error) {
	sec, err := v.resolveRead(sels)
	if err != nil {
		return nil, nil, err
	}

	data, err := v.readSection(sec)
	if err != nil {
		return nil, nil, err
	}

	return data, sec.Shape(), nil
}

// ReadAll transfers the whole variable as a flat native slice in logical
// row-major order.
func (v *Variable) ReadAll() (any, error) {
	if err := v.ds.forceData(); err != nil {
		return nil, err
	}

	dst := v.kern.alloc(v.Size())
	if err := v.ds.store.ReadAll(v.id, dst); err != nil {
		return nil, err
	}

	return dst, nil
}

// Write stores value into the selected elements. The value may be a native
// slice of exactly the selection's element count, a []float64 or []int of
// that count (converted element-wise), or a single scalar broadcast to every
// selected element. A length mismatch fails with errs.ErrShapeMismatch
// before anything is transferred.
func (v *Variable) Write(value any, sels ...index.Selector) error {
	sec, err := v.resolveWrite(sels)
	if err != nil {
		return err
	}

	data, err := v.kern.coerce(value, sec.Size())
	if err != nil {
		return err
	}

	return v.writeSection(sec, data)
}

// WriteAll replaces the variable's complete payload. The value follows the
// same type contract as Write and must cover the current extent exactly.
func (v *Variable) WriteAll(value any) error {
	data, err := v.kern.coerce(value, v.Size())
	if err != nil {
		return err
	}

	if err := v.ds.forceData(); err != nil {
		return err
	}

	return v.ds.store.WriteAll(v.id, data)
}

// readSection transfers one normalized section, choosing among the point,
// whole-variable and strided transfer paths.
func (v *Variable) readSection(sec index.Section) (any, error) {
	n := sec.Size()
	if sec.Rank() > 0 && n == 0 {
		// Empty selection: nothing to transfer.
		return v.kern.alloc(0), nil
	}

	if err := v.ds.forceData(); err != nil {
		return nil, err
	}

	switch {
	case sec.Rank() == 0:
		// A scalar variable transfers its single element in bulk, with no
		// start/count/stride vectors at all.
		dst := v.kern.alloc(1)
		if err := v.ds.store.ReadAll(v.id, dst); err != nil {
			return nil, err
		}

		return dst, nil

	case sec.IsPoint():
		val, err := v.ds.store.ReadPoint(v.id, index.Reversed(sec.Start))
		if err != nil {
			return nil, err
		}

		return v.kern.coerce(val, 1)

	case sec.IsFull(v.Shape()):
		dst := v.kern.alloc(n)
		if err := v.ds.store.ReadAll(v.id, dst); err != nil {
			return nil, err
		}

		return dst, nil

	default:
		dst := v.kern.alloc(n)
		err := v.ds.store.ReadSlab(v.id,
			index.Reversed(sec.Start), index.Reversed(sec.Count), index.Reversed(sec.Stride), dst)
		if err != nil {
			return nil, err
		}

		return dst, nil
	}
}

// writeSection stores a flat native slice into one normalized section. The
// slice length must already equal the section size.
func (v *Variable) writeSection(sec index.Section, data any) error {
	n := sec.Size()
	if sec.Rank() > 0 && n == 0 {
		return nil
	}

	if err := v.ds.forceData(); err != nil {
		return err
	}

	switch {
	case sec.Rank() == 0:
		return v.ds.store.WriteAll(v.id, data)

	case sec.IsPoint():
		return v.ds.store.WritePoint(v.id, index.Reversed(sec.Start), elemAt(data, 0))

	case sec.IsFull(v.Shape()):
		return v.ds.store.WriteAll(v.id, data)

	default:
		return v.ds.store.WriteSlab(v.id,
			index.Reversed(sec.Start), index.Reversed(sec.Count), index.Reversed(sec.Stride), data)
	}
}
