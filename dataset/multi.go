package dataset

import (
	"fmt"
	"reflect"

	"github.com/arloliu/nimbo/errs"
	"github.com/arloliu/nimbo/format"
	"github.com/arloliu/nimbo/index"
)

// MultiDataset serves several datasets as one read-only logical dataset,
// concatenated along a shared aggregation dimension. A variable whose
// slowest dimension is the aggregation dimension is stitched across members;
// every other variable must agree in shape across members and is served from
// the first.
//
// All mutating operations through a MultiDataset fail with errs.ErrReadOnly.
type MultiDataset struct {
	members []*Dataset
	aggDim  string

	// offsets[i] is member i's starting position along the aggregation
	// dimension; total is the aggregate extent.
	offsets []int
	total   int
}

// NewMulti aggregates the given datasets, in order, along the named
// dimension. Every member must define that dimension. Members are served
// read-only through the aggregate; they stay owned by the caller and are
// closed by Close.
func NewMulti(aggDim string, members ...*Dataset) (*MultiDataset, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("aggregate over %q: no member datasets", aggDim)
	}

	m := &MultiDataset{
		members: members,
		aggDim:  aggDim,
		offsets: make([]int, len(members)),
	}
	for i, member := range members {
		dim, err := member.Dim(aggDim)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", member.Path(), err)
		}
		m.offsets[i] = m.total
		m.total += dim.Len
	}

	return m, nil
}

// AggDim returns the aggregation dimension's name.
func (m *MultiDataset) AggDim() string { return m.aggDim }

// Members returns the member datasets in aggregation order.
func (m *MultiDataset) Members() []*Dataset { return m.members }

// Len returns the aggregate extent of the aggregation dimension.
func (m *MultiDataset) Len() int { return m.total }

// Attrs returns the aggregate global attribute view: an attribute is visible
// when every member defines it with an equal value.
func (m *MultiDataset) Attrs() Attributes {
	return &multiAttrs{m: m}
}

// Variables lists the names served by the aggregate: the first member's
// variables that exist in every member.
func (m *MultiDataset) Variables() []string {
	var names []string
	for _, name := range m.members[0].Variables() {
		shared := true
		for _, member := range m.members[1:] {
			if _, err := member.Store().VarByName(name); err != nil {
				shared = false
				break
			}
		}
		if shared {
			names = append(names, name)
		}
	}

	return names
}

// Var returns the CF view of a variable across the aggregate. The variable
// must exist in every member with the same element type. When its slowest
// dimension is the aggregation dimension, reads stitch member sections
// together in member order; otherwise all members must agree on the shape
// and the first member serves the data.
func (m *MultiDataset) Var(name string) (*CFVariable, error) {
	parts := make([]*Variable, len(m.members))
	for i, member := range m.members {
		raw, err := member.Variable(name)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", member.Path(), err)
		}
		if i > 0 && raw.Type() != parts[0].Type() {
			return nil, fmt.Errorf("%w: variable %q is %s in %q but %s in %q",
				errs.ErrInvalidDataType, name,
				parts[0].Type(), m.members[0].Path(), raw.Type(), member.Path())
		}
		parts[i] = raw
	}

	aggregated, err := m.usesAggDim(parts[0])
	if err != nil {
		return nil, err
	}
	if err := m.checkShapes(name, parts, aggregated); err != nil {
		return nil, err
	}

	raw := &multiVariable{
		multi:      m,
		name:       name,
		dtype:      parts[0].Type(),
		kern:       parts[0].kernel(),
		parts:      parts,
		aggregated: aggregated,
	}

	return &CFVariable{
		raw:   raw,
		attrs: &multiVarAttrs{multi: m, varName: name},
	}, nil
}

// usesAggDim reports whether v is aggregated. The aggregation dimension must
// be v's slowest dimension when present at all; aggregating an inner
// dimension would interleave member elements and is not supported.
func (m *MultiDataset) usesAggDim(v *Variable) (bool, error) {
	for i, id := range v.dimIDs {
		dim, err := v.ds.store.Dim(id)
		if err != nil {
			return false, err
		}
		if dim.Name != m.aggDim {
			continue
		}
		if i != 0 {
			return false, fmt.Errorf("variable %q uses aggregation dimension %q as dimension %d; only the slowest dimension can be aggregated",
				v.Name(), m.aggDim, i)
		}

		return true, nil
	}

	return false, nil
}

// checkShapes verifies the member shapes agree on every non-aggregated
// dimension.
func (m *MultiDataset) checkShapes(name string, parts []*Variable, aggregated bool) error {
	ref := parts[0].Shape()
	for i, part := range parts[1:] {
		shape := part.Shape()
		if len(shape) != len(ref) {
			return fmt.Errorf("%w: variable %q has rank %d in %q but %d in %q",
				errs.ErrShapeMismatch, name, len(ref), m.members[0].Path(),
				len(shape), m.members[i+1].Path())
		}
		for d := range shape {
			if aggregated && d == 0 {
				continue
			}
			if shape[d] != ref[d] {
				return fmt.Errorf("%w: variable %q differs on dimension %d between %q and %q",
					errs.ErrShapeMismatch, name, d, m.members[0].Path(), m.members[i+1].Path())
			}
		}
	}

	return nil
}

// Close closes every member and returns the first failure.
func (m *MultiDataset) Close() error {
	var firstErr error
	for _, member := range m.members {
		if err := member.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// multiVariable is the read-only raw view of one variable across the
// aggregate.
type multiVariable struct {
	multi      *MultiDataset
	name       string
	dtype      format.DataType
	kern       convKernel
	parts      []*Variable
	aggregated bool
}

var _ rawAccessor = (*multiVariable)(nil)

func (v *multiVariable) Name() string { return v.name }

func (v *multiVariable) Type() format.DataType { return v.dtype }

func (v *multiVariable) kernel() convKernel { return v.kern }

func (v *multiVariable) Shape() []int {
	shape := v.parts[0].Shape()
	if v.aggregated {
		shape[0] = v.multi.total
	}

	return shape
}

func (v *multiVariable) resolveRead(sels []index.Selector) (index.Section, error) {
	return index.Normalize(v.Shape(), sels...)
}

func (v *multiVariable) resolveWrite([]index.Selector) (index.Section, error) {
	return index.Section{}, fmt.Errorf("%w: variable %q is served through an aggregate", errs.ErrReadOnly, v.name)
}

func (v *multiVariable) writeSection(index.Section, any) error {
	return fmt.Errorf("%w: variable %q is served through an aggregate", errs.ErrReadOnly, v.name)
}

// readSection serves a logical section. Non-aggregated variables go straight
// to the first member. Aggregated ones split the slowest dimension's
// selection into member-local runs: within one member the selected positions
// keep their stride, so each run is itself a strided section, and
// concatenating the member results in member order yields logical order.
func (v *multiVariable) readSection(sec index.Section) (any, error) {
	if !v.aggregated {
		return v.parts[0].readSection(sec)
	}

	out := v.kern.alloc(sec.Size())
	restSize := 1
	for _, c := range sec.Count[1:] {
		restSize *= c
	}

	start0, count0, stride0 := sec.Start[0], sec.Count[0], sec.Stride[0]
	filled := 0
	for p, part := range v.parts {
		base := v.multi.offsets[p]
		length := part.Shape()[0]
		if length == 0 || count0 == 0 {
			continue
		}

		// First and last selected position falling inside this member.
		first := 0
		if start0 < base {
			first = (base - start0 + stride0 - 1) / stride0
		}
		if first >= count0 || start0+first*stride0 >= base+length {
			continue
		}
		last := (base + length - 1 - start0) / stride0
		if last > count0-1 {
			last = count0 - 1
		}
		runCount := last - first + 1

		local := index.Section{
			Start:   append([]int{start0 + first*stride0 - base}, sec.Start[1:]...),
			Count:   append([]int{runCount}, sec.Count[1:]...),
			Stride:  append([]int{stride0}, sec.Stride[1:]...),
			Squeeze: make([]bool, sec.Rank()),
		}
		data, err := part.readSection(local)
		if err != nil {
			return nil, err
		}
		v.kern.copyRange(out, filled, data, 0, runCount*restSize)
		filled += runCount * restSize
	}

	return out, nil
}

// multiAttrs is the aggregate's global attribute view: the conservative
// intersection of the member scopes. An attribute is present when every
// member defines it with an equal value.
type multiAttrs struct {
	m *MultiDataset
}

var _ Attributes = (*multiAttrs)(nil)

func (a *multiAttrs) Get(name string) (any, bool) {
	first, ok := a.m.members[0].Attrs().Get(name)
	if !ok {
		return nil, false
	}

	ref := scalarAttr(first)
	for _, member := range a.m.members[1:] {
		v, ok := member.Attrs().Get(name)
		if !ok || !reflect.DeepEqual(scalarAttr(v), ref) {
			return nil, false
		}
	}

	return first, true
}

func (a *multiAttrs) Set(string, any) error {
	return fmt.Errorf("%w: aggregate attributes", errs.ErrReadOnly)
}

func (a *multiAttrs) Delete(string) error {
	return fmt.Errorf("%w: aggregate attributes", errs.ErrReadOnly)
}

// Names lists the first member's attribute names that every member agrees
// on, in the first member's order.
func (a *multiAttrs) Names() []string {
	var names []string
	for _, name := range a.m.members[0].Attrs().Names() {
		if _, ok := a.Get(name); ok {
			names = append(names, name)
		}
	}

	return names
}

// multiVarAttrs serves one variable's attributes across the aggregate: Get
// returns the first member that defines the attribute, so members opened
// first take precedence.
type multiVarAttrs struct {
	multi   *MultiDataset
	varName string
}

var _ Attributes = (*multiVarAttrs)(nil)

func (a *multiVarAttrs) memberAttrs(member *Dataset) (Attributes, bool) {
	info, err := member.Store().VarByName(a.varName)
	if err != nil {
		return nil, false
	}

	return &storeAttrs{ds: member, owner: info.ID}, true
}

func (a *multiVarAttrs) Get(name string) (any, bool) {
	for _, member := range a.multi.members {
		attrs, ok := a.memberAttrs(member)
		if !ok {
			continue
		}
		if v, ok := attrs.Get(name); ok {
			return v, true
		}
	}

	return nil, false
}

func (a *multiVarAttrs) Set(string, any) error {
	return fmt.Errorf("%w: aggregate attributes", errs.ErrReadOnly)
}

func (a *multiVarAttrs) Delete(string) error {
	return fmt.Errorf("%w: aggregate attributes", errs.ErrReadOnly)
}

// Names lists attribute names in member order, first occurrence wins.
func (a *multiVarAttrs) Names() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, member := range a.multi.members {
		attrs, ok := a.memberAttrs(member)
		if !ok {
			continue
		}
		for _, name := range attrs.Names() {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	return names
}
