package compress

// ZstdCompressor provides Zstandard compression for container payloads.
//
// This compressor is the best default for archival datasets where compression
// ratio matters more than raw encode speed, making it ideal for:
//   - Long-term storage of model output and observation archives
//   - Network transfer of large gridded fields
//   - Payloads read far more often than they are written
//
// Performance characteristics:
//   - Compression: ~5-20 ns/byte (depending on compression level)
//   - Decompression: ~2-5 ns/byte
//   - Compression ratio: strong on smooth numeric fields, where neighboring
//     elements share high-order bytes
//   - Memory usage: moderate (pooled encoder/decoder instances)
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
//
// Returns:
//   - ZstdCompressor: New Zstd compressor instance
//
// Example:
//
//	compressor := NewZstdCompressor()
//	compressed, err := compressor.Compress(payload)
//	if err != nil {
//		return err
//	}
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
