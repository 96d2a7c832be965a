package compressors

import (
	"fmt"

	"github.com/INLOpen/synclog/core"
)

// ForType returns a Compressor for the given on-disk identifier.
func ForType(ct core.CompressionType) (core.Compressor, error) {
	switch ct {
	case core.CompressionNone:
		return NewNoCompressionCompressor(), nil
	case core.CompressionSnappy:
		return NewSnappyCompressor(), nil
	case core.CompressionLZ4:
		return NewLz4Compressor(), nil
	case core.CompressionZSTD:
		return NewZstdCompressor()
	default:
		return nil, fmt.Errorf("unknown compression type: %s", ct)
	}
}
