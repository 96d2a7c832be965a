package store

import (
	"fmt"

	"github.com/INLOpen/synclog/core"
)

// Entry is one record yielded by an Iterator.
type Entry struct {
	// Offset is the record's start offset, valid for ReadAt.
	Offset uint64
	// Payload is the record's data. It is owned by the caller.
	Payload []byte
}

// Iterator walks records in ascending offset order. It captures the logical
// length at creation time, so appends made while iterating are not observed;
// create a new Iterator to re-walk from the start.
//
// Usage follows the Next/At pattern:
//
//	it, _ := log.Iterator()
//	defer it.Close()
//	for it.Next() {
//		entry, _ := it.At()
//		...
//	}
//	if err := it.Error(); err != nil { ... }
type Iterator struct {
	log    *Log
	limit  uint64 // logical length snapshot
	pos    uint64 // next frame offset
	cur    Entry
	valid  bool
	err    error
	closed bool
}

// Iterator returns a new iterator positioned before the first record.
func (l *Log) Iterator() (*Iterator, error) {
	if l.closed.Load() {
		return nil, core.ErrClosed
	}
	return &Iterator{
		log:   l,
		limit: l.logicalLen.Load(),
	}, nil
}

// Next advances to the next record. It returns false when the snapshot is
// exhausted, the iterator is closed, or an error occurred; distinguish the
// last case with Error.
func (it *Iterator) Next() bool {
	if it.closed || it.err != nil || it.pos >= it.limit {
		it.valid = false
		return false
	}
	if it.log.closed.Load() {
		it.err = core.ErrClosed
		it.valid = false
		return false
	}

	payload, consumed, err := it.log.readFrameAt(it.pos, it.limit)
	if err != nil {
		// Inside the validated prefix every frame decoded at open time, so
		// a failure here indicates tampering since then, not a torn tail.
		it.err = fmt.Errorf("failed to decode record at offset %d: %w", it.pos, err)
		it.valid = false
		return false
	}

	it.cur = Entry{Offset: it.pos, Payload: payload}
	it.pos += consumed
	it.valid = true
	return true
}

// At returns the current entry. It is only valid after Next returned true.
func (it *Iterator) At() (Entry, error) {
	if !it.valid {
		if it.err != nil {
			return Entry{}, it.err
		}
		return Entry{}, fmt.Errorf("%w: iterator is not positioned on a record", core.ErrOutOfRange)
	}
	return it.cur, nil
}

// Error returns the first error the iterator encountered, if any.
func (it *Iterator) Error() error {
	return it.err
}

// Close releases the iterator. The underlying log stays open.
func (it *Iterator) Close() error {
	it.closed = true
	it.valid = false
	return nil
}
