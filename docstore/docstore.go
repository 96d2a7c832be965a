// Package docstore is a convenience layer that stores JSON documents in an
// append-only log. It only ever calls the log's public Append/ReadAt/Size/
// Iterator operations; all consistency guarantees come from the log itself.
//
// Each record is one document: a one-byte compression tag followed by the
// (possibly compressed) JSON encoding. The tag is per record, so a store
// reopened with a different compression setting keeps reading old records.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/INLOpen/synclog/compressors"
	"github.com/INLOpen/synclog/core"
	"github.com/INLOpen/synclog/store"
)

// ErrStopIteration can be returned from a ForEach callback to stop the walk
// early without reporting an error.
var ErrStopIteration = errors.New("stop iteration")

// Options holds configuration for opening a document store.
type Options struct {
	// Store configures the underlying log.
	Store store.Options
	// Compression is applied to documents written through this handle.
	Compression core.CompressionType
}

// Store persists JSON documents in an append-only log.
type Store struct {
	log  *store.Log
	comp core.Compressor
}

// Open opens the underlying log and prepares the write-side compressor.
func Open(opts Options) (*Store, error) {
	comp, err := compressors.ForType(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("failed to set up compressor: %w", err)
	}
	l, err := store.Open(opts.Store)
	if err != nil {
		return nil, err
	}
	return &Store{log: l, comp: comp}, nil
}

// Append marshals v to JSON and appends it as one document. The returned
// offset re-reads the document later via Get.
func (s *Store) Append(v any) (uint64, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal document: %w", err)
	}
	compressed, err := s.comp.Compress(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to compress document: %w", err)
	}

	payload := make([]byte, 1+len(compressed))
	payload[0] = byte(s.comp.Type())
	copy(payload[1:], compressed)

	return s.log.Append(payload)
}

// Get reads the document at offset and unmarshals it into v.
func (s *Store) Get(offset uint64, v any) error {
	payload, err := s.log.ReadAt(offset)
	if err != nil {
		return err
	}
	doc, err := decodeDocument(payload)
	if err != nil {
		return fmt.Errorf("failed to decode document at offset %d: %w", offset, err)
	}
	if err := json.Unmarshal(doc, v); err != nil {
		return fmt.Errorf("failed to unmarshal document at offset %d: %w", offset, err)
	}
	return nil
}

// ForEach walks all documents in append order. The callback receives each
// document's offset and raw JSON; returning ErrStopIteration ends the walk
// cleanly, any other error aborts it.
func (s *Store) ForEach(fn func(offset uint64, doc json.RawMessage) error) error {
	it, err := s.log.Iterator()
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		entry, err := it.At()
		if err != nil {
			return err
		}
		doc, err := decodeDocument(entry.Payload)
		if err != nil {
			return fmt.Errorf("failed to decode document at offset %d: %w", entry.Offset, err)
		}
		if err := fn(entry.Offset, json.RawMessage(doc)); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return it.Error()
}

// Count returns the number of documents currently visible.
func (s *Store) Count() (uint64, error) {
	it, err := s.log.Iterator()
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var n uint64
	for it.Next() {
		n++
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	return n, nil
}

// Size returns the logical length of the underlying log in bytes.
func (s *Store) Size() (uint64, error) {
	return s.log.Size()
}

// Log exposes the underlying append log.
func (s *Store) Log() *store.Log {
	return s.log
}

// Close closes the underlying log.
func (s *Store) Close() error {
	return s.log.Close()
}

// decodeDocument strips the compression tag and decompresses the body.
func decodeDocument(payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, errors.New("document record is empty")
	}
	comp, err := compressors.ForType(core.CompressionType(payload[0]))
	if err != nil {
		return nil, err
	}
	rc, err := comp.Decompress(payload[1:])
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
