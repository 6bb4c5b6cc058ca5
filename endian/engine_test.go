package endian

import (
	"encoding/binary"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestCheckEndianness(t *testing.T) {
	t.Run("MatchesHost", func(t *testing.T) {
		result := CheckEndianness()

		var probe uint16 = 0x0102
		bytes := (*[2]byte)(unsafe.Pointer(&probe))

		switch bytes[0] {
		case 0x01:
			require.Equal(t, binary.BigEndian, result)
		case 0x02:
			require.Equal(t, binary.LittleEndian, result)
		default:
			require.Failf(t, "unexpected probe byte", "got: %v", bytes[0])
		}
	})

	t.Run("Consistent", func(t *testing.T) {
		first := CheckEndianness()
		for i := 0; i < 100; i++ {
			require.Equal(t, first, CheckEndianness())
		}
	})

	t.Run("NativeChecksAreInverses", func(t *testing.T) {
		require.NotEqual(t, IsNativeLittleEndian(), IsNativeBigEndian())
		require.True(t, IsNativeLittleEndian() || IsNativeBigEndian())
	})

	t.Run("CompareNativeEndian", func(t *testing.T) {
		if IsNativeLittleEndian() {
			require.True(t, CompareNativeEndian(GetLittleEndianEngine()))
			require.False(t, CompareNativeEndian(GetBigEndianEngine()))
		} else {
			require.False(t, CompareNativeEndian(GetLittleEndianEngine()))
			require.True(t, CompareNativeEndian(GetBigEndianEngine()))
		}
	})
}

func TestEngines(t *testing.T) {
	t.Run("LittleEndianByteOrder", func(t *testing.T) {
		engine := GetLittleEndianEngine()
		require.Implements(t, (*EndianEngine)(nil), engine)
		require.Equal(t, binary.LittleEndian, engine)

		buf := make([]byte, 2)
		engine.PutUint16(buf, 0x0102)
		require.Equal(t, []byte{0x02, 0x01}, buf, "little endian puts LSB first")
		require.Equal(t, uint16(0x0102), engine.Uint16(buf))
	})

	t.Run("BigEndianByteOrder", func(t *testing.T) {
		engine := GetBigEndianEngine()
		require.Implements(t, (*EndianEngine)(nil), engine)
		require.Equal(t, binary.BigEndian, engine)

		buf := make([]byte, 2)
		engine.PutUint16(buf, 0x0102)
		require.Equal(t, []byte{0x01, 0x02}, buf, "big endian puts MSB first")
		require.Equal(t, uint16(0x0102), engine.Uint16(buf))
	})

	t.Run("OrdersDiffer", func(t *testing.T) {
		little := make([]byte, 8)
		big := make([]byte, 8)
		GetLittleEndianEngine().PutUint64(little, 0x0102030405060708)
		GetBigEndianEngine().PutUint64(big, 0x0102030405060708)

		require.NotEqual(t, little, big)
		require.Equal(t, uint64(0x0102030405060708), GetLittleEndianEngine().Uint64(little))
		require.Equal(t, uint64(0x0102030405060708), GetBigEndianEngine().Uint64(big))
	})

	t.Run("AppendRoundTrip", func(t *testing.T) {
		for _, engine := range []EndianEngine{GetLittleEndianEngine(), GetBigEndianEngine()} {
			var buf []byte
			buf = engine.AppendUint16(buf, 0xBEEF)
			buf = engine.AppendUint32(buf, 0xDEADBEEF)
			buf = engine.AppendUint64(buf, 0x0102030405060708)
			require.Len(t, buf, 14)

			require.Equal(t, uint16(0xBEEF), engine.Uint16(buf[0:2]))
			require.Equal(t, uint32(0xDEADBEEF), engine.Uint32(buf[2:6]))
			require.Equal(t, uint64(0x0102030405060708), engine.Uint64(buf[6:14]))
		}
	})

	t.Run("FloatBitsRoundTrip", func(t *testing.T) {
		// Numeric payloads travel as raw IEEE 754 bits through the engine.
		values := []float64{0, 1.5, -273.15, math.Pi, 9.9692099683868690e+36, math.NaN()}

		for _, engine := range []EndianEngine{GetLittleEndianEngine(), GetBigEndianEngine()} {
			for _, v := range values {
				var buf []byte
				buf = engine.AppendUint64(buf, math.Float64bits(v))
				got := math.Float64frombits(engine.Uint64(buf))
				require.Equal(t, math.Float64bits(v), math.Float64bits(got))
			}
		}
	})
}
