package container

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/arloliu/nimbo/backend"
	"github.com/arloliu/nimbo/errs"
	"github.com/arloliu/nimbo/format"
	"github.com/arloliu/nimbo/internal/pool"
)

// Metadata sections (dimension table, attribute blocks, variable table) are
// always little-endian. Strings are length-prefixed with a uvarint. The
// payload byte order flag in the header applies to variable payloads only.

// cursor walks a metadata section and fails with ErrCorruptedFile instead of
// panicking when the section is truncated.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) corrupted(what string) error {
	return fmt.Errorf("%w: truncated %s at offset %d", errs.ErrCorruptedFile, what, c.pos)
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, c.corrupted("byte run")
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n

	return b, nil
}

func (c *cursor) uint8() (uint8, error) {
	if c.pos+1 > len(c.data) {
		return 0, c.corrupted("uint8")
	}
	v := c.data[c.pos]
	c.pos++

	return v, nil
}

func (c *cursor) uint32() (uint32, error) {
	if c.pos+4 > len(c.data) {
		return 0, c.corrupted("uint32")
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4

	return v, nil
}

func (c *cursor) uint64() (uint64, error) {
	if c.pos+8 > len(c.data) {
		return 0, c.corrupted("uint64")
	}
	v := binary.LittleEndian.Uint64(c.data[c.pos:])
	c.pos += 8

	return v, nil
}

func (c *cursor) varString() (string, error) {
	n, bytesRead := binary.Uvarint(c.data[c.pos:])
	if bytesRead <= 0 {
		return "", c.corrupted("string length")
	}
	c.pos += bytesRead

	raw, err := c.bytes(int(n))
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

func appendVarString(bb *pool.ByteBuffer, s string) {
	bb.B = binary.AppendUvarint(bb.B, uint64(len(s)))
	bb.MustWrite([]byte(s))
}

func appendUint8(bb *pool.ByteBuffer, v uint8) {
	bb.B = append(bb.B, v)
}

func appendUint32(bb *pool.ByteBuffer, v uint32) {
	bb.B = binary.LittleEndian.AppendUint32(bb.B, v)
}

func appendUint64(bb *pool.ByteBuffer, v uint64) {
	bb.B = binary.LittleEndian.AppendUint64(bb.B, v)
}

// Dimension table entry: name, declared length (0 for the record dimension),
// record flag.

func appendDimEntry(bb *pool.ByteBuffer, info backend.DimInfo) {
	appendVarString(bb, info.Name)
	if info.Unlimited {
		appendUint64(bb, 0)
		appendUint8(bb, 1)
		return
	}
	appendUint64(bb, uint64(info.Len))
	appendUint8(bb, 0)
}

func parseDimEntry(c *cursor, id int) (backend.DimInfo, error) {
	name, err := c.varString()
	if err != nil {
		return backend.DimInfo{}, err
	}
	length, err := c.uint64()
	if err != nil {
		return backend.DimInfo{}, err
	}
	unlimited, err := c.uint8()
	if err != nil {
		return backend.DimInfo{}, err
	}
	if length > math.MaxInt32 {
		return backend.DimInfo{}, fmt.Errorf("%w: dimension %q length %d", errs.ErrCorruptedFile, name, length)
	}

	return backend.DimInfo{
		ID:        id,
		Name:      name,
		Len:       int(length),
		Unlimited: unlimited != 0,
	}, nil
}

// Attribute block: entry count, then entries of name, element type, element
// count and values. A string value is stored as a char run; a string list as
// counted varstrings; numerics as fixed-width little-endian values.

type attrEntry struct {
	name  string
	value any
}

// attrBlock holds one owner's attributes in definition order.
type attrBlock struct {
	entries []attrEntry
	index   map[string]int
}

func newAttrBlock() *attrBlock {
	return &attrBlock{index: make(map[string]int)}
}

// put normalizes and stores a value. Re-putting a name replaces the value but
// keeps its position, matching how schema tools expect attribute order to
// survive edits.
func (b *attrBlock) put(name string, value any) error {
	stored, _, _, err := normalizeAttrValue(value)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}

	if i, ok := b.index[name]; ok {
		b.entries[i].value = stored
		return nil
	}

	b.index[name] = len(b.entries)
	b.entries = append(b.entries, attrEntry{name: name, value: stored})

	return nil
}

func (b *attrBlock) get(name string) (any, bool) {
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}

	return copyAttrValue(b.entries[i].value), true
}

func (b *attrBlock) del(name string) bool {
	i, ok := b.index[name]
	if !ok {
		return false
	}

	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	delete(b.index, name)
	for j := i; j < len(b.entries); j++ {
		b.index[b.entries[j].name] = j
	}

	return true
}

func (b *attrBlock) names() []string {
	out := make([]string, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.name
	}

	return out
}

// normalizeAttrValue maps a user-provided attribute value onto the closed set
// of storable representations. Plain ints widen to int64; slices are copied
// so later caller mutations cannot reach stored state.
func normalizeAttrValue(value any) (stored any, dt format.DataType, count int, err error) {
	switch v := value.(type) {
	case string:
		return v, format.TypeChar, len(v), nil
	case []string:
		return append([]string(nil), v...), format.TypeString, len(v), nil
	case int8:
		return v, format.TypeByte, 1, nil
	case []int8:
		return append([]int8(nil), v...), format.TypeByte, len(v), nil
	case uint8:
		return v, format.TypeUByte, 1, nil
	case []uint8:
		return append([]uint8(nil), v...), format.TypeUByte, len(v), nil
	case int16:
		return v, format.TypeShort, 1, nil
	case []int16:
		return append([]int16(nil), v...), format.TypeShort, len(v), nil
	case uint16:
		return v, format.TypeUShort, 1, nil
	case []uint16:
		return append([]uint16(nil), v...), format.TypeUShort, len(v), nil
	case int32:
		return v, format.TypeInt, 1, nil
	case []int32:
		return append([]int32(nil), v...), format.TypeInt, len(v), nil
	case uint32:
		return v, format.TypeUInt, 1, nil
	case []uint32:
		return append([]uint32(nil), v...), format.TypeUInt, len(v), nil
	case int:
		return int64(v), format.TypeInt64, 1, nil
	case int64:
		return v, format.TypeInt64, 1, nil
	case []int64:
		return append([]int64(nil), v...), format.TypeInt64, len(v), nil
	case uint64:
		return v, format.TypeUInt64, 1, nil
	case []uint64:
		return append([]uint64(nil), v...), format.TypeUInt64, len(v), nil
	case float32:
		return v, format.TypeFloat, 1, nil
	case []float32:
		return append([]float32(nil), v...), format.TypeFloat, len(v), nil
	case float64:
		return v, format.TypeDouble, 1, nil
	case []float64:
		return append([]float64(nil), v...), format.TypeDouble, len(v), nil
	default:
		return nil, 0, 0, fmt.Errorf("%w: %T", errs.ErrInvalidValueType, value)
	}
}

// copyAttrValue clones slice-valued attributes so callers cannot mutate
// stored state through the returned value.
func copyAttrValue(value any) any {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case []int8:
		return append([]int8(nil), v...)
	case []uint8:
		return append([]uint8(nil), v...)
	case []int16:
		return append([]int16(nil), v...)
	case []uint16:
		return append([]uint16(nil), v...)
	case []int32:
		return append([]int32(nil), v...)
	case []uint32:
		return append([]uint32(nil), v...)
	case []int64:
		return append([]int64(nil), v...)
	case []uint64:
		return append([]uint64(nil), v...)
	case []float32:
		return append([]float32(nil), v...)
	case []float64:
		return append([]float64(nil), v...)
	default:
		return v
	}
}

func appendAttrBlock(bb *pool.ByteBuffer, b *attrBlock) {
	appendUint32(bb, uint32(len(b.entries)))
	for _, e := range b.entries {
		appendAttrEntry(bb, e)
	}
}

func appendAttrEntry(bb *pool.ByteBuffer, e attrEntry) {
	_, dt, count, _ := normalizeAttrValue(e.value)
	appendVarString(bb, e.name)
	appendUint8(bb, uint8(dt))
	appendUint32(bb, uint32(count))

	switch v := e.value.(type) {
	case string:
		bb.MustWrite([]byte(v))
	case []string:
		for _, s := range v {
			appendVarString(bb, s)
		}
	case int8:
		appendUint8(bb, uint8(v))
	case []int8:
		for _, x := range v {
			appendUint8(bb, uint8(x))
		}
	case uint8:
		appendUint8(bb, v)
	case []uint8:
		bb.MustWrite(v)
	case int16:
		bb.B = binary.LittleEndian.AppendUint16(bb.B, uint16(v))
	case []int16:
		for _, x := range v {
			bb.B = binary.LittleEndian.AppendUint16(bb.B, uint16(x))
		}
	case uint16:
		bb.B = binary.LittleEndian.AppendUint16(bb.B, v)
	case []uint16:
		for _, x := range v {
			bb.B = binary.LittleEndian.AppendUint16(bb.B, x)
		}
	case int32:
		appendUint32(bb, uint32(v))
	case []int32:
		for _, x := range v {
			appendUint32(bb, uint32(x))
		}
	case uint32:
		appendUint32(bb, v)
	case []uint32:
		for _, x := range v {
			appendUint32(bb, x)
		}
	case int64:
		appendUint64(bb, uint64(v))
	case []int64:
		for _, x := range v {
			appendUint64(bb, uint64(x))
		}
	case uint64:
		appendUint64(bb, v)
	case []uint64:
		for _, x := range v {
			appendUint64(bb, x)
		}
	case float32:
		appendUint32(bb, math.Float32bits(v))
	case []float32:
		for _, x := range v {
			appendUint32(bb, math.Float32bits(x))
		}
	case float64:
		appendUint64(bb, math.Float64bits(v))
	case []float64:
		for _, x := range v {
			appendUint64(bb, math.Float64bits(x))
		}
	}
}

func parseAttrBlock(c *cursor) (*attrBlock, error) {
	count, err := c.uint32()
	if err != nil {
		return nil, err
	}

	block := newAttrBlock()
	for i := uint32(0); i < count; i++ {
		name, value, err := parseAttrEntry(c)
		if err != nil {
			return nil, err
		}
		block.index[name] = len(block.entries)
		block.entries = append(block.entries, attrEntry{name: name, value: value})
	}

	return block, nil
}

func parseAttrEntry(c *cursor) (string, any, error) {
	name, err := c.varString()
	if err != nil {
		return "", nil, err
	}
	dtRaw, err := c.uint8()
	if err != nil {
		return "", nil, err
	}
	count64, err := c.uint32()
	if err != nil {
		return "", nil, err
	}
	count := int(count64)

	dt := format.DataType(dtRaw)
	value, err := parseAttrValue(c, dt, count)
	if err != nil {
		return "", nil, err
	}

	return name, value, nil
}

func parseAttrValue(c *cursor, dt format.DataType, count int) (any, error) {
	switch dt {
	case format.TypeChar:
		raw, err := c.bytes(count)
		if err != nil {
			return nil, err
		}
		return string(raw), nil

	case format.TypeString:
		vals := make([]string, count)
		for i := range vals {
			s, err := c.varString()
			if err != nil {
				return nil, err
			}
			vals[i] = s
		}
		if count == 1 {
			return vals[0], nil
		}
		return vals, nil

	case format.TypeByte:
		raw, err := c.bytes(count)
		if err != nil {
			return nil, err
		}
		vals := make([]int8, count)
		for i, b := range raw {
			vals[i] = int8(b)
		}
		if count == 1 {
			return vals[0], nil
		}
		return vals, nil

	case format.TypeUByte:
		raw, err := c.bytes(count)
		if err != nil {
			return nil, err
		}
		if count == 1 {
			return raw[0], nil
		}
		return append([]uint8(nil), raw...), nil

	case format.TypeShort:
		raw, err := c.bytes(count * 2)
		if err != nil {
			return nil, err
		}
		vals := make([]int16, count)
		for i := range vals {
			vals[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		if count == 1 {
			return vals[0], nil
		}
		return vals, nil

	case format.TypeUShort:
		raw, err := c.bytes(count * 2)
		if err != nil {
			return nil, err
		}
		vals := make([]uint16, count)
		for i := range vals {
			vals[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}
		if count == 1 {
			return vals[0], nil
		}
		return vals, nil

	case format.TypeInt:
		raw, err := c.bytes(count * 4)
		if err != nil {
			return nil, err
		}
		vals := make([]int32, count)
		for i := range vals {
			vals[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		if count == 1 {
			return vals[0], nil
		}
		return vals, nil

	case format.TypeUInt:
		raw, err := c.bytes(count * 4)
		if err != nil {
			return nil, err
		}
		vals := make([]uint32, count)
		for i := range vals {
			vals[i] = binary.LittleEndian.Uint32(raw[i*4:])
		}
		if count == 1 {
			return vals[0], nil
		}
		return vals, nil

	case format.TypeInt64:
		raw, err := c.bytes(count * 8)
		if err != nil {
			return nil, err
		}
		vals := make([]int64, count)
		for i := range vals {
			vals[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		if count == 1 {
			return vals[0], nil
		}
		return vals, nil

	case format.TypeUInt64:
		raw, err := c.bytes(count * 8)
		if err != nil {
			return nil, err
		}
		vals := make([]uint64, count)
		for i := range vals {
			vals[i] = binary.LittleEndian.Uint64(raw[i*8:])
		}
		if count == 1 {
			return vals[0], nil
		}
		return vals, nil

	case format.TypeFloat:
		raw, err := c.bytes(count * 4)
		if err != nil {
			return nil, err
		}
		vals := make([]float32, count)
		for i := range vals {
			vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		if count == 1 {
			return vals[0], nil
		}
		return vals, nil

	case format.TypeDouble:
		raw, err := c.bytes(count * 8)
		if err != nil {
			return nil, err
		}
		vals := make([]float64, count)
		for i := range vals {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		if count == 1 {
			return vals[0], nil
		}
		return vals, nil

	default:
		return nil, fmt.Errorf("%w: attribute type %d", errs.ErrCorruptedFile, dt)
	}
}

// Variable table entry: name, element type, payload compression, dimension
// ids (fastest-varying first), attribute block, payload descriptor.

func appendVarEntry(bb *pool.ByteBuffer, v *variable, desc payloadDesc) {
	appendVarString(bb, v.info.Name)
	appendUint8(bb, uint8(v.info.Type))
	appendUint8(bb, uint8(v.compression))
	appendUint8(bb, uint8(len(v.info.DimIDs)))
	for _, id := range v.info.DimIDs {
		appendUint32(bb, uint32(id))
	}
	appendAttrBlock(bb, v.attrs)
	appendUint64(bb, desc.uncompressedLen)
	appendUint64(bb, desc.compressedLen)
	appendUint64(bb, desc.offset)
	appendUint64(bb, desc.checksum)
}

func parseVarEntry(c *cursor, id int) (*variable, payloadDesc, error) {
	name, err := c.varString()
	if err != nil {
		return nil, payloadDesc{}, err
	}
	dtRaw, err := c.uint8()
	if err != nil {
		return nil, payloadDesc{}, err
	}
	dt := format.DataType(dtRaw)
	if !dt.Valid() {
		return nil, payloadDesc{}, fmt.Errorf("%w: variable %q type %d", errs.ErrCorruptedFile, name, dtRaw)
	}

	compRaw, err := c.uint8()
	if err != nil {
		return nil, payloadDesc{}, err
	}
	compression := format.CompressionType(compRaw)
	if !compression.Valid() {
		return nil, payloadDesc{}, fmt.Errorf("%w: variable %q compression %d", errs.ErrCorruptedFile, name, compRaw)
	}

	rank, err := c.uint8()
	if err != nil {
		return nil, payloadDesc{}, err
	}
	dimIDs := make([]int, rank)
	for i := range dimIDs {
		dimID, err := c.uint32()
		if err != nil {
			return nil, payloadDesc{}, err
		}
		dimIDs[i] = int(dimID)
	}

	attrs, err := parseAttrBlock(c)
	if err != nil {
		return nil, payloadDesc{}, err
	}

	var desc payloadDesc
	if desc.uncompressedLen, err = c.uint64(); err != nil {
		return nil, payloadDesc{}, err
	}
	if desc.compressedLen, err = c.uint64(); err != nil {
		return nil, payloadDesc{}, err
	}
	if desc.offset, err = c.uint64(); err != nil {
		return nil, payloadDesc{}, err
	}
	if desc.checksum, err = c.uint64(); err != nil {
		return nil, payloadDesc{}, err
	}

	v := &variable{
		info: backend.VarInfo{
			ID:     id,
			Name:   name,
			Type:   dt,
			DimIDs: dimIDs,
		},
		compression: compression,
		attrs:       attrs,
	}

	return v, desc, nil
}
