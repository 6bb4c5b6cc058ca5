package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// flateWriterPool pools flate writers for reuse. flate.Writer supports Reset,
// which eliminates the dictionary allocation on every payload.
var flateWriterPool = sync.Pool{
	New: func() any {
		w, err := flate.NewWriter(io.Discard, flate.DefaultCompression)
		if err != nil {
			// This should never happen with a valid level
			panic(fmt.Sprintf("failed to create flate writer for pool: %v", err))
		}
		return w
	},
}

// DeflateCompressor provides DEFLATE compression for container payloads.
//
// DEFLATE is the algorithm used by zlib-based array stores, so it is the
// natural choice when payloads must stay byte-compatible with tooling that
// expects zlib-style compression. For new files Zstd usually compresses
// better and faster.
type DeflateCompressor struct{}

var _ Codec = (*DeflateCompressor)(nil)

// NewDeflateCompressor creates a new DEFLATE compressor with the default level.
func NewDeflateCompressor() DeflateCompressor {
	return DeflateCompressor{}
}

// Compress compresses the input data as a raw DEFLATE stream.
// Uses a pooled writer for better performance.
func (c DeflateCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	w, _ := flateWriterPool.Get().(*flate.Writer)
	defer flateWriterPool.Put(w)

	var buf bytes.Buffer
	buf.Grow(len(data) / 2)
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate compression failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses a raw DEFLATE stream.
//
// This method validates the stream and returns an error if the data is
// corrupted or was not compressed with DEFLATE.
func (c DeflateCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	decompressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("deflate decompression failed: %w", err)
	}

	return decompressed, nil
}
