// Package sys abstracts file access behind a small handle interface so the
// store can be exercised against fault-injecting implementations in tests.
package sys

import (
	"io"
	"os"
)

// FileHandle is the subset of *os.File the store relies on. Appends go
// through WriteAt and reads through ReadAt, so implementations do not need
// to maintain a shared seek position.
type FileHandle interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.WriterAt
	io.Seeker

	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
	Name() string
}

// OpenFileFunc opens a file and returns a handle for it. The store takes an
// OpenFileFunc in its options; tests substitute one that returns wrapped
// handles with injected faults.
type OpenFileFunc func(name string, flag int, perm os.FileMode) (FileHandle, error)

// OpenFile is the default OpenFileFunc, backed by the real filesystem.
func OpenFile(name string, flag int, perm os.FileMode) (FileHandle, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &RealFile{f: f}, nil
}
