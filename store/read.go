package store

import (
	"fmt"

	"github.com/INLOpen/synclog/core"
)

// ReadAt decodes the record beginning at offset and returns its payload.
// Only offsets previously returned by Append (in this or an earlier process
// lifetime) are guaranteed to be record starts; other offsets inside the
// logical prefix may fail with a frame error.
//
// Offsets at or past Size() fail with core.ErrOutOfRange. A frame error at a
// valid record offset means external tampering or a bug, never a normal
// crash: the prefix up to Size() was already validated at open.
func (l *Log) ReadAt(offset uint64) ([]byte, error) {
	if l.closed.Load() {
		return nil, core.ErrClosed
	}

	limit := l.logicalLen.Load()
	if offset >= limit {
		return nil, fmt.Errorf("%w: offset %d, logical length %d", core.ErrOutOfRange, offset, limit)
	}

	payload, _, err := l.readFrameAt(offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to decode record at offset %d: %w", offset, err)
	}
	return payload, nil
}
