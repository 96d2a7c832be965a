package core

import "errors"

// Sentinel errors shared by the codec and the store. Callers are expected to
// test for them with errors.Is; the store wraps them with offset context.
var (
	// ErrFormatMismatch means the bytes at offset 0 are not a synclog file
	// header at all. This is fatal for Open: the file belongs to some other
	// format and must not be parsed further.
	ErrFormatMismatch = errors.New("not a synclog file")

	// ErrUnsupportedVersion means the file is a synclog file, but written by
	// an incompatible future version (see FileHeader.ReadCompatible and
	// FileHeader.WriteCompatible).
	ErrUnsupportedVersion = errors.New("unsupported synclog version")

	// ErrPayloadTooLarge is returned before any I/O when a payload exceeds
	// the maximum record size.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum record size")

	// ErrFrameCorrupt means a frame was fully readable but its checksum does
	// not match, or its declared length is impossible.
	ErrFrameCorrupt = errors.New("frame checksum mismatch")

	// ErrFrameIncomplete means fewer bytes were available than the frame
	// declares, including the case where the fixed frame header itself is
	// short. During recovery this marks the torn tail of the log.
	ErrFrameIncomplete = errors.New("frame is incomplete")

	// ErrOutOfRange is returned by reads at or past the logical length.
	ErrOutOfRange = errors.New("offset is past the end of the log")

	// ErrClosed is returned by any operation on a closed log.
	ErrClosed = errors.New("log is closed")

	// ErrReadOnly is returned by Append on a log opened read-only.
	ErrReadOnly = errors.New("log is opened read-only")
)
