package core

import (
	"encoding/binary"
	"fmt"
	"time"
)

// MagicNumber identifies a synclog file. It is the first field of every file
// and is checked before anything else is parsed.
const MagicNumber uint32 = 0x31474C53 // "SLG1" when read as little-endian bytes

// Version fields of the current implementation. The three components gate
// compatibility independently:
//
//   - Major: a reader that does not know this major version must not open
//     the file at all.
//   - Format: a writer that does not know this format version may open the
//     file read-only but must not append to it.
//   - Minor: informational only.
const (
	CurrentMajor  uint8  = 0
	CurrentFormat uint8  = 0
	CurrentMinor  uint16 = 1
)

// HeaderSize is the fixed encoded size of FileHeader.
const HeaderSize = 16

// FileHeader is the fixed 16-byte header at offset 0 of every log file.
// All fields are little-endian on disk.
type FileHeader struct {
	Magic     uint32
	Major     uint8
	Format    uint8
	Minor     uint16
	CreatedAt int64 // UnixNano timestamp
}

// NewFileHeader creates a header for a freshly created file.
func NewFileHeader() FileHeader {
	return FileHeader{
		Magic:     MagicNumber,
		Major:     CurrentMajor,
		Format:    CurrentFormat,
		Minor:     CurrentMinor,
		CreatedAt: time.Now().UnixNano(),
	}
}

// ReadCompatible reports whether this implementation may read the file.
func (h *FileHeader) ReadCompatible() bool {
	return h.Major <= CurrentMajor
}

// WriteCompatible reports whether this implementation may append to the file.
func (h *FileHeader) WriteCompatible() bool {
	return h.ReadCompatible() && h.Format <= CurrentFormat
}

// EncodeHeader serializes the header into its fixed on-disk form.
func EncodeHeader(h FileHeader) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Major
	buf[5] = h.Format
	binary.LittleEndian.PutUint16(buf[6:8], h.Minor)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.CreatedAt))
	return buf
}

// DecodeHeader parses and validates the file header at the start of b.
// A short or magic-less prefix yields ErrFormatMismatch: the file is not a
// log of this format, which is distinct from a torn frame inside one.
func DecodeHeader(b []byte) (FileHeader, error) {
	if len(b) < HeaderSize {
		return FileHeader{}, fmt.Errorf("%w: %d header bytes, want %d", ErrFormatMismatch, len(b), HeaderSize)
	}
	h := FileHeader{
		Magic:     binary.LittleEndian.Uint32(b[0:4]),
		Major:     b[4],
		Format:    b[5],
		Minor:     binary.LittleEndian.Uint16(b[6:8]),
		CreatedAt: int64(binary.LittleEndian.Uint64(b[8:16])),
	}
	if h.Magic != MagicNumber {
		return FileHeader{}, fmt.Errorf("%w: bad magic %#x", ErrFormatMismatch, h.Magic)
	}
	return h, nil
}
