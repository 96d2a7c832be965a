package compressors

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/INLOpen/synclog/core"
	lz4 "github.com/pierrec/lz4/v4"
)

// LZ4Compressor implements the Compressor interface using LZ4 block
// encoding. The lz4 block format does not record the uncompressed size, so
// each compressed buffer is prefixed with it as a uvarint plus a one-byte
// marker for the raw fallback taken when a block does not compress.
type LZ4Compressor struct{}

const (
	lz4MarkerBlock byte = 1
	lz4MarkerRaw   byte = 0
)

type lz4ReadCloser struct {
	*bytes.Reader
}

// Close is a no-op for in-memory decompressed data.
func (lrc *lz4ReadCloser) Close() error {
	return nil
}

var _ core.Compressor = (*LZ4Compressor)(nil)
var _ io.ReadCloser = (*lz4ReadCloser)(nil)

func NewLz4Compressor() *LZ4Compressor {
	return &LZ4Compressor{}
}

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	head := make([]byte, binary.MaxVarintLen64+1)
	n := binary.PutUvarint(head, uint64(len(data)))
	head = head[:n+1]

	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress error: %w", err)
	}
	if written == 0 {
		// Incompressible input: store it raw.
		head[n] = lz4MarkerRaw
		return append(head, data...), nil
	}
	head[n] = lz4MarkerBlock
	return append(head, dst[:written]...), nil
}

func (c *LZ4Compressor) Decompress(data []byte) (io.ReadCloser, error) {
	size, n := binary.Uvarint(data)
	if n <= 0 || len(data) < n+1 {
		return nil, fmt.Errorf("lz4 decompress error: malformed size prefix")
	}
	marker := data[n]
	body := data[n+1:]

	if marker == lz4MarkerRaw {
		return &lz4ReadCloser{Reader: bytes.NewReader(body)}, nil
	}

	dst := make([]byte, size)
	written, err := lz4.UncompressBlock(body, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress error: %w", err)
	}
	return &lz4ReadCloser{Reader: bytes.NewReader(dst[:written])}, nil
}

func (c *LZ4Compressor) Type() core.CompressionType {
	return core.CompressionLZ4
}
