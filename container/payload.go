package container

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/arloliu/nimbo/compress"
	"github.com/arloliu/nimbo/endian"
	"github.com/arloliu/nimbo/errs"
	"github.com/arloliu/nimbo/format"
	"github.com/arloliu/nimbo/internal/pool"
)

// payloadDesc locates and authenticates one variable's payload. The offset
// is relative to the file's payload region. The checksum covers the
// compressed bytes, so corruption is detected before the codec ever sees the
// data.
type payloadDesc struct {
	uncompressedLen uint64
	compressedLen   uint64
	offset          uint64
	checksum        uint64
}

// VarStats pairs a variable name with the compression outcome of its payload
// in the most recently written file image.
type VarStats struct {
	Name  string
	Stats compress.CompressionStats
}

// encodePayload serializes one variable's elements with the file byte order,
// compresses them with the variable's codec and checksums the result.
// The offset field of the returned descriptor is filled in by the caller once
// the payload region layout is known.
func encodePayload(v *variable, engine endian.EndianEngine) ([]byte, payloadDesc, error) {
	bb := pool.GetPayloadBuffer()
	defer pool.PutPayloadBuffer(bb)

	appendRawPayload(bb, v.data, engine)
	raw := bb.Bytes()

	var blob []byte
	if v.compression == format.CompressionNone {
		// The no-op codec aliases its input, which lives in a pooled buffer.
		blob = append([]byte(nil), raw...)
	} else {
		codec, err := compress.GetCodec(v.compression)
		if err != nil {
			return nil, payloadDesc{}, fmt.Errorf("variable %q: %w", v.info.Name, err)
		}
		blob, err = codec.Compress(raw)
		if err != nil {
			return nil, payloadDesc{}, fmt.Errorf("variable %q: %w", v.info.Name, err)
		}
	}

	desc := payloadDesc{
		uncompressedLen: uint64(len(raw)),
		compressedLen:   uint64(len(blob)),
		checksum:        xxhash.Sum64(blob),
	}

	return blob, desc, nil
}

// decodePayload verifies, decompresses and deserializes one variable's
// payload into its typed element slice. numElems is the element count implied
// by the variable's shape and the file's record count.
func decodePayload(v *variable, blob []byte, desc payloadDesc, engine endian.EndianEngine, numElems int) error {
	if xxhash.Sum64(blob) != desc.checksum {
		return fmt.Errorf("%w: variable %q payload", errs.ErrChecksumMismatch, v.info.Name)
	}

	codec, err := compress.GetCodec(v.compression)
	if err != nil {
		return fmt.Errorf("variable %q: %w", v.info.Name, err)
	}

	raw, err := codec.Decompress(blob)
	if err != nil {
		return fmt.Errorf("%w: variable %q: %v", errs.ErrCorruptedFile, v.info.Name, err)
	}
	if uint64(len(raw)) != desc.uncompressedLen {
		return fmt.Errorf("%w: variable %q payload is %d bytes, expected %d",
			errs.ErrCorruptedFile, v.info.Name, len(raw), desc.uncompressedLen)
	}

	data, err := parseRawPayload(raw, v.info.Type, numElems, engine)
	if err != nil {
		return fmt.Errorf("variable %q: %w", v.info.Name, err)
	}
	v.data = data

	return nil
}

// appendRawPayload serializes a typed element slice in storage element order.
// Fixed-width elements use the file byte order; strings are length-prefixed
// and byte-order independent.
func appendRawPayload(bb *pool.ByteBuffer, data any, engine endian.EndianEngine) {
	switch src := data.(type) {
	case []int8:
		for _, x := range src {
			bb.B = append(bb.B, uint8(x))
		}
	case []uint8:
		bb.MustWrite(src)
	case []int16:
		for _, x := range src {
			bb.B = engine.AppendUint16(bb.B, uint16(x))
		}
	case []uint16:
		for _, x := range src {
			bb.B = engine.AppendUint16(bb.B, x)
		}
	case []int32:
		for _, x := range src {
			bb.B = engine.AppendUint32(bb.B, uint32(x))
		}
	case []uint32:
		for _, x := range src {
			bb.B = engine.AppendUint32(bb.B, x)
		}
	case []float32:
		for _, x := range src {
			bb.B = engine.AppendUint32(bb.B, math.Float32bits(x))
		}
	case []int64:
		for _, x := range src {
			bb.B = engine.AppendUint64(bb.B, uint64(x))
		}
	case []uint64:
		for _, x := range src {
			bb.B = engine.AppendUint64(bb.B, x)
		}
	case []float64:
		for _, x := range src {
			bb.B = engine.AppendUint64(bb.B, math.Float64bits(x))
		}
	case []string:
		for _, s := range src {
			appendVarString(bb, s)
		}
	}
}

// parseRawPayload deserializes numElems elements of the given type.
func parseRawPayload(raw []byte, dt format.DataType, numElems int, engine endian.EndianEngine) (any, error) {
	if size := dt.Size(); size > 0 && len(raw) != numElems*size {
		return nil, fmt.Errorf("%w: payload is %d bytes, expected %d elements of %d bytes",
			errs.ErrCorruptedFile, len(raw), numElems, size)
	}

	switch dt {
	case format.TypeByte:
		out := make([]int8, numElems)
		for i, b := range raw {
			out[i] = int8(b)
		}
		return out, nil

	case format.TypeChar, format.TypeUByte:
		return append([]uint8(nil), raw...), nil

	case format.TypeShort:
		out := make([]int16, numElems)
		for i := range out {
			out[i] = int16(engine.Uint16(raw[i*2:]))
		}
		return out, nil

	case format.TypeUShort:
		out := make([]uint16, numElems)
		for i := range out {
			out[i] = engine.Uint16(raw[i*2:])
		}
		return out, nil

	case format.TypeInt:
		out := make([]int32, numElems)
		for i := range out {
			out[i] = int32(engine.Uint32(raw[i*4:]))
		}
		return out, nil

	case format.TypeUInt:
		out := make([]uint32, numElems)
		for i := range out {
			out[i] = engine.Uint32(raw[i*4:])
		}
		return out, nil

	case format.TypeFloat:
		out := make([]float32, numElems)
		for i := range out {
			out[i] = math.Float32frombits(engine.Uint32(raw[i*4:]))
		}
		return out, nil

	case format.TypeInt64:
		out := make([]int64, numElems)
		for i := range out {
			out[i] = int64(engine.Uint64(raw[i*8:]))
		}
		return out, nil

	case format.TypeUInt64:
		out := make([]uint64, numElems)
		for i := range out {
			out[i] = engine.Uint64(raw[i*8:])
		}
		return out, nil

	case format.TypeDouble:
		out := make([]float64, numElems)
		for i := range out {
			out[i] = math.Float64frombits(engine.Uint64(raw[i*8:]))
		}
		return out, nil

	case format.TypeString:
		c := newCursor(raw)
		out := make([]string, numElems)
		for i := range out {
			s, err := c.varString()
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		if c.pos != len(raw) {
			return nil, fmt.Errorf("%w: %d trailing payload bytes", errs.ErrCorruptedFile, len(raw)-c.pos)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidDataType, dt)
	}
}
