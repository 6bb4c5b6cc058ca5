//go:build nobuild

package compress

import (
	"github.com/valyala/gozstd"
)

// cgo-backed Zstandard path. Swap the build tags here and in zstd_pure.go to
// trade the pure-Go codec for the libzstd bindings.

// Compress compresses the input data using Zstandard compression.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, 3), nil
}

func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.Decompress(nil, data)
}
