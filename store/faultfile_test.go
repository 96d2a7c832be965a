package store

import (
	"errors"
	"os"
	"sync"

	"github.com/INLOpen/synclog/sys"
)

// errSimulatedCrash stands in for the I/O error a process would see when a
// write is cut short by power loss or a full disk.
var errSimulatedCrash = errors.New("simulated crash: torn write")

// tornFile wraps a FileHandle and tears one WriteAt call: the Nth write
// accepts only the first keepBytes bytes and then fails. This reproduces the
// on-disk state a crash mid-write leaves behind, deterministically.
type tornFile struct {
	sys.FileHandle

	mu        sync.Mutex
	tearWrite int // 1-based index of the WriteAt call to tear; 0 tears none
	keepBytes int
	writes    int
}

func (f *tornFile) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	f.writes++
	doTear := f.writes == f.tearWrite
	f.mu.Unlock()

	if doTear {
		keep := f.keepBytes
		if keep > len(p) {
			keep = len(p)
		}
		n, err := f.FileHandle.WriteAt(p[:keep], off)
		if err != nil {
			return n, err
		}
		return n, errSimulatedCrash
	}
	return f.FileHandle.WriteAt(p, off)
}

// tornOpener returns an OpenFileFunc whose handles tear the given write.
// Write numbering counts every WriteAt on the handle; opening a fresh log
// file issues one header write before the first append.
func tornOpener(tearWrite, keepBytes int) sys.OpenFileFunc {
	return func(name string, flag int, perm os.FileMode) (sys.FileHandle, error) {
		fh, err := sys.OpenFile(name, flag, perm)
		if err != nil {
			return nil, err
		}
		return &tornFile{FileHandle: fh, tearWrite: tearWrite, keepBytes: keepBytes}, nil
	}
}
