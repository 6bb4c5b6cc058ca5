// Package compress provides compression and decompression codecs for nimbo
// container payloads.
//
// Every variable in a container file stores its elements as one contiguous
// payload section. The codec chosen for a variable compresses that payload
// when the file is written and restores it when the file is opened. Each
// payload section records the codec that produced it, so readers never need
// out-of-band configuration.
//
// # Architecture
//
// The package defines three core interfaces:
//
//	type Compressor interface {
//	    Compress(data []byte) ([]byte, error)
//	}
//
//	type Decompressor interface {
//	    Decompress(data []byte) ([]byte, error)
//	}
//
//	type Codec interface {
//	    Compressor
//	    Decompressor
//	}
//
// Codecs are looked up by their format.CompressionType tag:
//
//	codec, err := compress.GetCodec(format.CompressionZstd)
//	if err != nil {
//	    return err
//	}
//	compressed, err := codec.Compress(payload)
//
// # Supported Algorithms
//
// **NoOp** (format.CompressionNone)
//
// Stores payloads verbatim. Use for incompressible data or when write speed
// dominates.
//
// **DEFLATE** (format.CompressionDeflate)
//
// The zlib-family algorithm used by classic self-describing array formats.
// Choose it when compressed payload bytes must remain familiar to zlib-based
// tooling. Slower and weaker than Zstd on typical gridded fields.
//
// **Zstandard** (format.CompressionZstd)
//
// The best default for archival data. Smooth numeric fields compress well
// because neighboring elements share their high-order bytes.
//
// **S2** (format.CompressionS2)
//
// Snappy-compatible with better ratios. A balanced choice for files that are
// both written and read frequently.
//
// **LZ4** (format.CompressionLZ4)
//
// Fastest decompression, moderate ratio. Suits query-heavy workloads and
// scratch files.
//
// # Algorithm Selection Guide
//
// | Workload                  | Recommended | Reason                        |
// |---------------------------|-------------|-------------------------------|
// | Archival / cold storage   | Zstd        | Best compression ratio        |
// | Frequent rewrite          | LZ4         | Cheapest writes               |
// | Read-heavy analysis       | LZ4 or S2   | Fastest decompression         |
// | zlib-compatible pipelines | Deflate     | Familiar byte stream          |
// | Already-compressed data   | None        | No benefit from re-compression|
//
// # Thread Safety
//
// All codec implementations are safe for concurrent use. Internally they pool
// encoder and decoder state, so sharing one codec across goroutines is the
// intended usage.
//
// # Error Handling
//
// Compression errors are rare. Decompression errors indicate corrupted input
// or a payload compressed with a different algorithm; container readers treat
// them as file corruption. All errors are wrapped with context for debugging.
//
// # Integration with the Container Package
//
// The container package applies codecs per variable. Configure them when
// creating a dataset:
//
//	store, _ := container.Create("sst.nbc",
//	    container.WithDefaultCompression(format.CompressionZstd),
//	)
//
// Readers detect the codec from each payload section header automatically.
package compress
