package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/INLOpen/synclog/core"
)

// scan walks the record region from offset 0 and returns the end of the
// longest gap-free prefix of valid frames, together with the record count.
//
// The scan stops at the first incomplete or corrupt frame and never attempts
// to resynchronize past it: bytes after the first bad frame are post-crash
// garbage even if a later stretch happens to look like a valid frame, and
// resurrecting them would break append ordering. regionSize is the physical
// size of the record region (file size minus the header).
func (l *Log) scan(regionSize uint64) (validEnd uint64, records uint64, err error) {
	for validEnd < regionSize {
		_, consumed, err := l.readFrameAt(validEnd, regionSize)
		if err != nil {
			if errors.Is(err, core.ErrFrameIncomplete) || errors.Is(err, core.ErrFrameCorrupt) {
				// Torn or rotted tail. Everything before it was written
				// completely, so the prefix stays; the tail is discarded
				// from the logical view and overwritten by the next append.
				return validEnd, records, nil
			}
			return 0, 0, fmt.Errorf("recovery scan failed at offset %d: %w", validEnd, err)
		}
		validEnd += consumed
		records++
	}
	return validEnd, records, nil
}

// readFrameAt reads and validates the frame starting at the given record
// region offset, never touching bytes at or past limit. It returns the
// payload (a fresh slice) and the frame's full size.
func (l *Log) readFrameAt(offset, limit uint64) ([]byte, uint64, error) {
	avail := limit - offset
	if avail < core.FrameOverhead {
		return nil, 0, fmt.Errorf("%w: %d bytes before end of region", core.ErrFrameIncomplete, avail)
	}

	head := make([]byte, core.FrameOverhead)
	if err := l.readFull(head, offset); err != nil {
		return nil, 0, err
	}
	_, _, decErr := core.DecodeFrame(head)
	if decErr != nil && !errors.Is(decErr, core.ErrFrameIncomplete) {
		// Impossible declared length and similar header-level corruption.
		return nil, 0, decErr
	}

	frameSize := core.EncodedFrameSize(int(binary.LittleEndian.Uint32(head[0:4])))
	if frameSize > avail {
		return nil, 0, fmt.Errorf("%w: frame of %d bytes, %d available", core.ErrFrameIncomplete, frameSize, avail)
	}

	frame := make([]byte, frameSize)
	copy(frame, head)
	if err := l.readFull(frame[core.FrameOverhead:], offset+core.FrameOverhead); err != nil {
		return nil, 0, err
	}

	payload, consumed, err := core.DecodeFrame(frame)
	if err != nil {
		return nil, 0, err
	}
	return payload, consumed, nil
}

// readFull reads len(buf) bytes of the record region starting at the given
// region offset. A file that ends early is reported as an incomplete frame,
// not an I/O error.
func (l *Log) readFull(buf []byte, offset uint64) error {
	n, err := l.file.ReadAt(buf, core.HeaderSize+int64(offset))
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: short read of %d bytes at offset %d", core.ErrFrameIncomplete, n, offset)
		}
		return fmt.Errorf("failed to read %d bytes at offset %d: %w", len(buf), offset, err)
	}
	return nil
}
