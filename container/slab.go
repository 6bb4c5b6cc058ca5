package container

import (
	"github.com/arloliu/nimbo/backend"
	"github.com/arloliu/nimbo/errs"
	"github.com/arloliu/nimbo/format"
)

// slabGeo is a validated hyperslab in storage order: dimension 0 varies
// fastest, elemStride[i] is the flat distance between neighbours along
// dimension i, and total is the packed element count.
type slabGeo struct {
	start      []int
	count      []int
	stride     []int
	elemStride []int
	total      int
}

// kernel adapts the generic slab routines to one element type. All data
// arguments hold the variable's typed element slice; buffer arguments are
// checked once through bufLen before any transfer runs.
type kernel interface {
	alloc(n int) any
	extend(data any, n int) any
	bufLen(buf any) (int, bool)
	copyOut(data, dst any)
	copyIn(data, src any)
	gather(data, dst any, g slabGeo)
	scatter(data, src any, g slabGeo)
	point(data any, off int) any
	setPoint(data any, off int, value any) bool
}

type slabKernel[T any] struct {
	fill T
}

func (k slabKernel[T]) alloc(n int) any {
	out := make([]T, n)
	for i := range out {
		out[i] = k.fill
	}

	return out
}

func (k slabKernel[T]) extend(data any, n int) any {
	out := append(data.([]T), make([]T, n)...)
	for i := len(out) - n; i < len(out); i++ {
		out[i] = k.fill
	}

	return out
}

func (k slabKernel[T]) bufLen(buf any) (int, bool) {
	b, ok := buf.([]T)
	if !ok {
		return 0, false
	}

	return len(b), true
}

func (k slabKernel[T]) copyOut(data, dst any) {
	copy(dst.([]T), data.([]T))
}

func (k slabKernel[T]) copyIn(data, src any) {
	copy(data.([]T), src.([]T))
}

func (k slabKernel[T]) gather(data, dst any, g slabGeo) {
	gatherSlab(dst.([]T), data.([]T), g)
}

func (k slabKernel[T]) scatter(data, src any, g slabGeo) {
	scatterSlab(data.([]T), src.([]T), g)
}

func (k slabKernel[T]) point(data any, off int) any {
	return data.([]T)[off]
}

func (k slabKernel[T]) setPoint(data any, off int, value any) bool {
	v, ok := value.(T)
	if !ok {
		return false
	}
	data.([]T)[off] = v

	return true
}

// kernelFor returns the element kernel for dt, or nil for an invalid type.
func kernelFor(dt format.DataType) kernel {
	switch dt {
	case format.TypeByte:
		return slabKernel[int8]{fill: format.FillByte}
	case format.TypeChar:
		return slabKernel[uint8]{fill: format.FillChar}
	case format.TypeUByte:
		return slabKernel[uint8]{fill: format.FillUByte}
	case format.TypeShort:
		return slabKernel[int16]{fill: format.FillShort}
	case format.TypeUShort:
		return slabKernel[uint16]{fill: format.FillUShort}
	case format.TypeInt:
		return slabKernel[int32]{fill: format.FillInt}
	case format.TypeUInt:
		return slabKernel[uint32]{fill: format.FillUInt}
	case format.TypeFloat:
		return slabKernel[float32]{fill: format.FillFloat}
	case format.TypeDouble:
		return slabKernel[float64]{fill: format.FillDouble}
	case format.TypeInt64:
		return slabKernel[int64]{fill: format.FillInt64}
	case format.TypeUInt64:
		return slabKernel[uint64]{fill: format.FillUInt64}
	case format.TypeString:
		return slabKernel[string]{fill: format.FillString}
	default:
		return nil
	}
}

// gatherSlab copies the slab described by g out of a flat storage slice into
// a packed buffer. Unit-stride runs along dimension 0 copy in one step; the
// odometer walks the remaining dimensions.
func gatherSlab[T any](dst, src []T, g slabGeo) {
	rank := len(g.count)
	if rank == 0 {
		dst[0] = src[0]
		return
	}

	contiguous := g.stride[0] == 1
	odo := make([]int, rank)
	pos := 0
	for {
		off := 0
		for i, o := range odo {
			off += (g.start[i] + o*g.stride[i]) * g.elemStride[i]
		}

		if contiguous {
			pos += copy(dst[pos:pos+g.count[0]], src[off:off+g.count[0]])
			odo[0] = g.count[0]
		} else {
			dst[pos] = src[off]
			pos++
			odo[0]++
		}

		i := 0
		for i < rank && odo[i] >= g.count[i] {
			odo[i] = 0
			i++
			if i < rank {
				odo[i]++
			}
		}
		if i == rank {
			return
		}
	}
}

// scatterSlab is the write-side mirror of gatherSlab.
func scatterSlab[T any](dst, src []T, g slabGeo) {
	rank := len(g.count)
	if rank == 0 {
		dst[0] = src[0]
		return
	}

	contiguous := g.stride[0] == 1
	odo := make([]int, rank)
	pos := 0
	for {
		off := 0
		for i, o := range odo {
			off += (g.start[i] + o*g.stride[i]) * g.elemStride[i]
		}

		if contiguous {
			pos += copy(dst[off:off+g.count[0]], src[pos:pos+g.count[0]])
			odo[0] = g.count[0]
		} else {
			dst[off] = src[pos]
			pos++
			odo[0]++
		}

		i := 0
		for i < rank && odo[i] >= g.count[i] {
			odo[i] = 0
			i++
			if i < rank {
				odo[i]++
			}
		}
		if i == rank {
			return
		}
	}
}

// varExtents returns v's storage-order extents. The record dimension reports
// the store's current record count.
func (s *Store) varExtents(v *variable) []int {
	extents := make([]int, len(v.info.DimIDs))
	for i, id := range v.info.DimIDs {
		if s.dims[id].Unlimited {
			extents[i] = s.numRecords
		} else {
			extents[i] = s.dims[id].Len
		}
	}

	return extents
}

// recordSize returns the number of elements one record of v occupies.
func (s *Store) recordSize(v *variable) int {
	n := 1
	for _, id := range v.info.DimIDs {
		if id != s.recordDim {
			n *= s.dims[id].Len
		}
	}

	return n
}

func (v *variable) usesDim(id int) bool {
	for _, d := range v.info.DimIDs {
		if d == id {
			return true
		}
	}

	return false
}

func numElements(extents []int) int {
	n := 1
	for _, e := range extents {
		n *= e
	}

	return n
}

func elementStrides(extents []int) []int {
	strides := make([]int, len(extents))
	acc := 1
	for i, e := range extents {
		strides[i] = acc
		acc *= e
	}

	return strides
}

func unitStride(rank int) []int {
	out := make([]int, rank)
	for i := range out {
		out[i] = 1
	}

	return out
}

func badBuffer(v *variable, buf any) error {
	return errs.Backend(backend.StatusBadType, errs.ErrInvalidValueType,
		"variable %q stores %s elements, got %T", v.info.Name, v.info.Type, buf)
}

func badBufferLen(v *variable, want, got int) error {
	return errs.Backend(backend.StatusEdge, errs.ErrShapeMismatch,
		"variable %q transfer covers %d elements, buffer holds %d", v.info.Name, want, got)
}

// checkSlab validates slab geometry against v's current extents. A nil
// stride means unit stride on every dimension. When allowGrow is set the
// record dimension accepts indexes beyond the current record count and
// needRecords reports the count the slab requires; otherwise needRecords is
// the current count.
func (s *Store) checkSlab(v *variable, start, count, stride []int, allowGrow bool) (slabGeo, int, error) {
	rank := len(v.info.DimIDs)
	if len(start) != rank || len(count) != rank || (stride != nil && len(stride) != rank) {
		return slabGeo{}, 0, errs.Backend(backend.StatusInvalCoords, errs.ErrRankMismatch,
			"variable %q has rank %d, got start/count/stride of %d/%d/%d entries",
			v.info.Name, rank, len(start), len(count), len(stride))
	}
	if stride == nil {
		stride = unitStride(rank)
	}

	total := 1
	for i := 0; i < rank; i++ {
		if stride[i] < 1 {
			return slabGeo{}, 0, errs.Backend(backend.StatusStride, errs.ErrInvalidStride,
				"stride %d on dimension %d of %q", stride[i], i, v.info.Name)
		}
		if start[i] < 0 || count[i] < 0 {
			return slabGeo{}, 0, errs.Backend(backend.StatusInvalCoords, errs.ErrIndexOutOfRange,
				"negative start or count on dimension %d of %q", i, v.info.Name)
		}
		total *= count[i]
	}

	extents := s.varExtents(v)
	geo := slabGeo{
		start:      start,
		count:      count,
		stride:     stride,
		elemStride: elementStrides(extents),
		total:      total,
	}
	if total == 0 {
		return geo, s.numRecords, nil
	}

	needRecords := s.numRecords
	for i := 0; i < rank; i++ {
		last := start[i] + (count[i]-1)*stride[i]
		if allowGrow && s.recordDim >= 0 && v.info.DimIDs[i] == s.recordDim {
			if last+1 > needRecords {
				needRecords = last + 1
			}
			continue
		}
		if start[i] >= extents[i] {
			return slabGeo{}, 0, errs.Backend(backend.StatusInvalCoords, errs.ErrIndexOutOfRange,
				"start %d on dimension %d of %q, extent %d", start[i], i, v.info.Name, extents[i])
		}
		if last >= extents[i] {
			return slabGeo{}, 0, errs.Backend(backend.StatusEdge, errs.ErrIndexOutOfRange,
				"slab reaches index %d on dimension %d of %q, extent %d", last, i, v.info.Name, extents[i])
		}
	}

	return geo, needRecords, nil
}

// growRecords extends every record variable to hold target records, filling
// the new tail with default fill values. The record dimension is the last
// storage dimension of every record variable, so existing elements keep
// their flat positions.
func (s *Store) growRecords(target int) {
	if target <= s.numRecords {
		return
	}

	delta := target - s.numRecords
	for _, v := range s.vars {
		if !v.usesDim(s.recordDim) {
			continue
		}
		v.data = kernelFor(v.info.Type).extend(v.data, delta*s.recordSize(v))
	}
	s.numRecords = target
	s.dims[s.recordDim].Len = target
}

// ReadAll copies the variable's complete payload into dst.
func (s *Store) ReadAll(varID int, dst any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.varAt(varID)
	if err != nil {
		return err
	}
	if err := s.requireDataMode("read"); err != nil {
		return err
	}

	kern := kernelFor(v.info.Type)
	n, ok := kern.bufLen(dst)
	if !ok {
		return badBuffer(v, dst)
	}
	want := numElements(s.varExtents(v))
	if n != want {
		return badBufferLen(v, want, n)
	}
	kern.copyOut(v.data, dst)

	return nil
}

// WriteAll copies src over the variable's complete payload. The source must
// cover the variable's current extent exactly; record growth goes through
// WriteSlab or WritePoint.
func (s *Store) WriteAll(varID int, src any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.varAt(varID)
	if err != nil {
		return err
	}
	if err := s.requireWritable(); err != nil {
		return err
	}
	if err := s.requireDataMode("write"); err != nil {
		return err
	}

	kern := kernelFor(v.info.Type)
	n, ok := kern.bufLen(src)
	if !ok {
		return badBuffer(v, src)
	}
	want := numElements(s.varExtents(v))
	if n != want {
		return badBufferLen(v, want, n)
	}
	kern.copyIn(v.data, src)

	return nil
}

// ReadSlab copies a strided hyperslab into dst. Geometry is in storage order
// and dst must hold exactly the product of count elements.
func (s *Store) ReadSlab(varID int, start, count, stride []int, dst any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.varAt(varID)
	if err != nil {
		return err
	}
	if err := s.requireDataMode("read"); err != nil {
		return err
	}

	geo, _, err := s.checkSlab(v, start, count, stride, false)
	if err != nil {
		return err
	}

	kern := kernelFor(v.info.Type)
	n, ok := kern.bufLen(dst)
	if !ok {
		return badBuffer(v, dst)
	}
	if n != geo.total {
		return badBufferLen(v, geo.total, n)
	}
	if geo.total == 0 {
		return nil
	}
	kern.gather(v.data, dst, geo)

	return nil
}

// WriteSlab copies src into a strided hyperslab. Slabs addressing records
// beyond the current extent grow the record dimension first, filling any gap
// with default fill values.
func (s *Store) WriteSlab(varID int, start, count, stride []int, src any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.varAt(varID)
	if err != nil {
		return err
	}
	if err := s.requireWritable(); err != nil {
		return err
	}
	if err := s.requireDataMode("write"); err != nil {
		return err
	}

	geo, needRecords, err := s.checkSlab(v, start, count, stride, true)
	if err != nil {
		return err
	}

	kern := kernelFor(v.info.Type)
	n, ok := kern.bufLen(src)
	if !ok {
		return badBuffer(v, src)
	}
	if n != geo.total {
		return badBufferLen(v, geo.total, n)
	}
	if geo.total == 0 {
		return nil
	}

	s.growRecords(needRecords)
	kern.scatter(v.data, src, geo)

	return nil
}

// ReadPoint returns the single element at coord.
func (s *Store) ReadPoint(varID int, coord []int) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.varAt(varID)
	if err != nil {
		return nil, err
	}
	if err := s.requireDataMode("read"); err != nil {
		return nil, err
	}

	off, _, err := s.pointOffset(v, coord, false)
	if err != nil {
		return nil, err
	}

	return kernelFor(v.info.Type).point(v.data, off), nil
}

// WritePoint stores a single element at coord, growing the record dimension
// when coord addresses a record beyond the current extent.
func (s *Store) WritePoint(varID int, coord []int, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.varAt(varID)
	if err != nil {
		return err
	}
	if err := s.requireWritable(); err != nil {
		return err
	}
	if err := s.requireDataMode("write"); err != nil {
		return err
	}

	off, needRecords, err := s.pointOffset(v, coord, true)
	if err != nil {
		return err
	}

	s.growRecords(needRecords)
	if !kernelFor(v.info.Type).setPoint(v.data, off, value) {
		return badBuffer(v, value)
	}

	return nil
}

// pointOffset validates coord and returns its flat element offset.
func (s *Store) pointOffset(v *variable, coord []int, allowGrow bool) (int, int, error) {
	rank := len(v.info.DimIDs)
	if len(coord) != rank {
		return 0, 0, errs.Backend(backend.StatusInvalCoords, errs.ErrRankMismatch,
			"variable %q has rank %d, got %d coordinates", v.info.Name, rank, len(coord))
	}

	extents := s.varExtents(v)
	elemStride := elementStrides(extents)
	needRecords := s.numRecords

	off := 0
	for i, c := range coord {
		if c < 0 {
			return 0, 0, errs.Backend(backend.StatusInvalCoords, errs.ErrIndexOutOfRange,
				"coordinate %d on dimension %d of %q", c, i, v.info.Name)
		}
		if allowGrow && s.recordDim >= 0 && v.info.DimIDs[i] == s.recordDim {
			if c+1 > needRecords {
				needRecords = c + 1
			}
		} else if c >= extents[i] {
			return 0, 0, errs.Backend(backend.StatusInvalCoords, errs.ErrIndexOutOfRange,
				"coordinate %d on dimension %d of %q, extent %d", c, i, v.info.Name, extents[i])
		}
		off += c * elemStride[i]
	}

	return off, needRecords, nil
}
