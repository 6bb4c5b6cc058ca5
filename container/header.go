package container

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/arloliu/nimbo/endian"
	"github.com/arloliu/nimbo/errs"
)

const (
	// HeaderSize is the fixed size of the file header in bytes.
	HeaderSize = 64

	// FormatVersion is the container format version this package writes.
	FormatVersion = 1
)

// magicBytes opens every container file. The leading non-ASCII byte and the
// embedded CR-LF catch files mangled by text-mode transfers, the same trick
// classic scientific formats use.
var magicBytes = [8]byte{0x89, 'N', 'B', 'C', '\r', '\n', 0x1a, '\n'}

// Header flag bits.
const (
	// flagBigEndian marks variable payloads as big-endian. Metadata sections
	// are always little-endian so the header can be parsed before the flag
	// is known.
	flagBigEndian uint16 = 1 << 0

	// flagHasRecordDim marks files whose dimension table contains a record
	// dimension.
	flagHasRecordDim uint16 = 1 << 1
)

// Header is the fixed-size section at the start of a container file. It
// locates the three metadata tables and the payload region that follow it.
type Header struct {
	// Version is the container format version. byte offset 8-9
	Version uint16
	// Flags packs the byte order and record dimension bits. byte offset 10-11
	Flags uint16
	// DimCount is the number of dimension table entries. byte offset 12-15
	DimCount uint32
	// GlobalAttrCount is the number of global attribute entries. byte offset 16-19
	GlobalAttrCount uint32
	// VarCount is the number of variable table entries. byte offset 20-23
	VarCount uint32
	// NumRecords is the current length of the record dimension. byte offset 24-31
	NumRecords uint64
	// DimTableOffset locates the dimension table. byte offset 32-39
	DimTableOffset uint64
	// GlobalAttrOffset locates the global attribute block. byte offset 40-47
	GlobalAttrOffset uint64
	// VarTableOffset locates the variable table. byte offset 48-55
	VarTableOffset uint64
	// PayloadOffset locates the payload region. byte offset 56-63
	PayloadOffset uint64
}

// NewHeader creates a header for a new file. Counts and offsets are filled in
// by the encoder once the table sizes are known.
func NewHeader() *Header {
	return &Header{
		Version: FormatVersion,
	}
}

// Parse parses the header from a byte slice.
//
// Parameters:
//   - data: Byte slice containing the header (must be exactly 64 bytes)
//
// Returns:
//   - error: ErrInvalidHeaderSize, ErrInvalidMagicNumber or
//     ErrUnsupportedVersion
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	if !bytes.Equal(data[0:8], magicBytes[:]) {
		return errs.ErrInvalidMagicNumber
	}

	h.Version = binary.LittleEndian.Uint16(data[8:10])
	if h.Version != FormatVersion {
		return fmt.Errorf("%w: %d", errs.ErrUnsupportedVersion, h.Version)
	}

	h.Flags = binary.LittleEndian.Uint16(data[10:12])
	h.DimCount = binary.LittleEndian.Uint32(data[12:16])
	h.GlobalAttrCount = binary.LittleEndian.Uint32(data[16:20])
	h.VarCount = binary.LittleEndian.Uint32(data[20:24])
	h.NumRecords = binary.LittleEndian.Uint64(data[24:32])
	h.DimTableOffset = binary.LittleEndian.Uint64(data[32:40])
	h.GlobalAttrOffset = binary.LittleEndian.Uint64(data[40:48])
	h.VarTableOffset = binary.LittleEndian.Uint64(data[48:56])
	h.PayloadOffset = binary.LittleEndian.Uint64(data[56:64])

	return nil
}

// Bytes serializes the header into a 64-byte slice.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)

	copy(b[0:8], magicBytes[:])
	binary.LittleEndian.PutUint16(b[8:10], h.Version)
	binary.LittleEndian.PutUint16(b[10:12], h.Flags)
	binary.LittleEndian.PutUint32(b[12:16], h.DimCount)
	binary.LittleEndian.PutUint32(b[16:20], h.GlobalAttrCount)
	binary.LittleEndian.PutUint32(b[20:24], h.VarCount)
	binary.LittleEndian.PutUint64(b[24:32], h.NumRecords)
	binary.LittleEndian.PutUint64(b[32:40], h.DimTableOffset)
	binary.LittleEndian.PutUint64(b[40:48], h.GlobalAttrOffset)
	binary.LittleEndian.PutUint64(b[48:56], h.VarTableOffset)
	binary.LittleEndian.PutUint64(b[56:64], h.PayloadOffset)

	return b
}

// BigEndian reports whether variable payloads use big-endian byte order.
func (h *Header) BigEndian() bool {
	return h.Flags&flagBigEndian != 0
}

// EndianEngine returns the engine matching the payload byte order flag.
func (h *Header) EndianEngine() endian.EndianEngine {
	if h.BigEndian() {
		return endian.GetBigEndianEngine()
	}

	return endian.GetLittleEndianEngine()
}

// HasRecordDim reports whether the dimension table contains a record
// dimension.
func (h *Header) HasRecordDim() bool {
	return h.Flags&flagHasRecordDim != 0
}

// ParseHeader parses a Header from the start of a byte slice.
//
// Parameters:
//   - data: Byte slice containing at least HeaderSize bytes
//
// Returns:
//   - Header: Parsed header struct
//   - error: ErrInvalidHeaderSize, ErrInvalidMagicNumber or
//     ErrUnsupportedVersion
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errs.ErrInvalidHeaderSize
	}

	h := Header{}
	if err := h.Parse(data[:HeaderSize]); err != nil {
		return Header{}, err
	}

	return h, nil
}
