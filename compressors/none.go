// Package compressors provides core.Compressor implementations used by the
// document store to shrink payloads before they are appended to the log.
package compressors

import (
	"bytes"
	"io"

	"github.com/INLOpen/synclog/core"
)

// NoCompressionCompressor implements the Compressor interface without
// performing compression.
type NoCompressionCompressor struct{}

type plainReadCloser struct {
	*bytes.Reader
}

// Close is a no-op: there are no resources behind in-memory data.
func (p *plainReadCloser) Close() error {
	return nil
}

var _ core.Compressor = (*NoCompressionCompressor)(nil)
var _ io.ReadCloser = (*plainReadCloser)(nil)

func NewNoCompressionCompressor() *NoCompressionCompressor {
	return &NoCompressionCompressor{}
}

func (c *NoCompressionCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (c *NoCompressionCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	return &plainReadCloser{Reader: bytes.NewReader(data)}, nil
}

func (c *NoCompressionCompressor) Type() core.CompressionType {
	return core.CompressionNone
}
