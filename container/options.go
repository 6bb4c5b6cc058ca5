package container

import (
	"fmt"

	"github.com/arloliu/nimbo/compress"
	"github.com/arloliu/nimbo/endian"
	"github.com/arloliu/nimbo/format"
	"github.com/arloliu/nimbo/internal/options"
)

// Option configures a Store during Create, Open or FromBytes.
type Option = options.Option[*Store]

// WithLittleEndian makes Create serialize variable payloads little-endian.
// This is the default.
func WithLittleEndian() Option {
	return options.NoError(func(s *Store) {
		s.engine = endian.GetLittleEndianEngine()
	})
}

// WithBigEndian makes Create serialize variable payloads big-endian, for
// files consumed on big-endian systems. Readers pick the byte order up from
// the file header, so this option only matters when creating files.
func WithBigEndian() Option {
	return options.NoError(func(s *Store) {
		s.engine = endian.GetBigEndianEngine()
	})
}

// WithDefaultCompression sets the codec applied to payloads of variables
// that do not override it with SetVarCompression. The default is
// format.CompressionNone.
func WithDefaultCompression(compression format.CompressionType) Option {
	return options.New(func(s *Store) error {
		if _, err := compress.GetCodec(compression); err != nil {
			return fmt.Errorf("default compression: %w", err)
		}
		s.defaultCompression = compression

		return nil
	})
}

// WithAppend opens an existing store writable. Without it, Open and
// FromBytes return read-only stores.
func WithAppend() Option {
	return options.NoError(func(s *Store) {
		s.readOnly = false
	})
}
