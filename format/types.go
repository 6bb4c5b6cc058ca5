// Package format defines the shared enumerations of the nimbo container
// format: element data types, payload compression algorithms, and the
// dataset access modes.
package format

type (
	// DataType identifies the native element type of a variable or
	// attribute. The numeric values are part of the container file format
	// and must not be reordered.
	DataType uint8

	// CompressionType identifies the payload compression algorithm of a
	// variable section. The numeric values are part of the container file
	// format and must not be reordered.
	CompressionType uint8

	// Mode is the dataset access mode. Metadata (dimensions, variables,
	// attributes) may only be defined in ModeDefine; bulk data may only be
	// read or written in ModeData.
	Mode uint8
)

const (
	TypeByte   DataType = 1  // TypeByte is a signed 8-bit integer.
	TypeChar   DataType = 2  // TypeChar is a single text character (one byte).
	TypeShort  DataType = 3  // TypeShort is a signed 16-bit integer.
	TypeInt    DataType = 4  // TypeInt is a signed 32-bit integer.
	TypeFloat  DataType = 5  // TypeFloat is a 32-bit IEEE float.
	TypeDouble DataType = 6  // TypeDouble is a 64-bit IEEE float.
	TypeUByte  DataType = 7  // TypeUByte is an unsigned 8-bit integer.
	TypeUShort DataType = 8  // TypeUShort is an unsigned 16-bit integer.
	TypeUInt   DataType = 9  // TypeUInt is an unsigned 32-bit integer.
	TypeInt64  DataType = 10 // TypeInt64 is a signed 64-bit integer.
	TypeUInt64 DataType = 11 // TypeUInt64 is an unsigned 64-bit integer.
	TypeString DataType = 12 // TypeString is a variable-length UTF-8 string.
)

const (
	CompressionNone    CompressionType = 0x1 // CompressionNone stores payloads verbatim.
	CompressionDeflate CompressionType = 0x2 // CompressionDeflate is DEFLATE (zlib parity).
	CompressionZstd    CompressionType = 0x3 // CompressionZstd is Zstandard.
	CompressionS2      CompressionType = 0x4 // CompressionS2 is S2 (Snappy-compatible).
	CompressionLZ4     CompressionType = 0x5 // CompressionLZ4 is LZ4 block compression.
)

const (
	// ModeDefine permits metadata definition and forbids data transfers.
	ModeDefine Mode = 0x1
	// ModeData permits data transfers and forbids metadata definition.
	ModeData Mode = 0x2
)

func (t DataType) String() string {
	switch t {
	case TypeByte:
		return "byte"
	case TypeChar:
		return "char"
	case TypeShort:
		return "short"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeUByte:
		return "ubyte"
	case TypeUShort:
		return "ushort"
	case TypeUInt:
		return "uint"
	case TypeInt64:
		return "int64"
	case TypeUInt64:
		return "uint64"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the supported element types.
func (t DataType) Valid() bool {
	return t >= TypeByte && t <= TypeString
}

// Size returns the fixed byte width of one element, or 0 for TypeString
// whose elements are variable-length.
func (t DataType) Size() int {
	switch t {
	case TypeByte, TypeChar, TypeUByte:
		return 1
	case TypeShort, TypeUShort:
		return 2
	case TypeInt, TypeUInt, TypeFloat:
		return 4
	case TypeDouble, TypeInt64, TypeUInt64:
		return 8
	default:
		return 0
	}
}

// IsNumeric reports whether t participates in scale/offset arithmetic.
// TypeChar and TypeString are text types and never do.
func (t DataType) IsNumeric() bool {
	return t.Valid() && t != TypeChar && t != TypeString
}

// IsText reports whether t is a character or string type.
func (t DataType) IsText() bool {
	return t == TypeChar || t == TypeString
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionDeflate:
		return "Deflate"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// Valid reports whether c is one of the supported compression types.
func (c CompressionType) Valid() bool {
	return c >= CompressionNone && c <= CompressionLZ4
}

func (m Mode) String() string {
	switch m {
	case ModeDefine:
		return "define"
	case ModeData:
		return "data"
	default:
		return "unknown"
	}
}

// Default fill constants. Fresh or grown storage is pre-filled with these
// values so that never-written elements read back deterministically. They
// follow the conventional fill values of self-describing array formats and
// play no role in CF masking, which keys off the _FillValue attribute alone.
const (
	FillByte   = int8(-127)
	FillChar   = byte(0)
	FillShort  = int16(-32767)
	FillInt    = int32(-2147483647)
	FillFloat  = float32(9.9692099683868690e+36)
	FillDouble = float64(9.9692099683868690e+36)
	FillUByte  = uint8(255)
	FillUShort = uint16(65535)
	FillUInt   = uint32(4294967295)
	FillInt64  = int64(-9223372036854775806)
	FillUInt64 = uint64(18446744073709551614)
	FillString = ""
)

// DefaultFill returns the default fill value of t as a scalar of the
// corresponding Go type, or nil for an invalid type.
func DefaultFill(t DataType) any {
	switch t {
	case TypeByte:
		return FillByte
	case TypeChar:
		return FillChar
	case TypeShort:
		return FillShort
	case TypeInt:
		return FillInt
	case TypeFloat:
		return FillFloat
	case TypeDouble:
		return FillDouble
	case TypeUByte:
		return FillUByte
	case TypeUShort:
		return FillUShort
	case TypeUInt:
		return FillUInt
	case TypeInt64:
		return FillInt64
	case TypeUInt64:
		return FillUInt64
	case TypeString:
		return FillString
	default:
		return nil
	}
}
