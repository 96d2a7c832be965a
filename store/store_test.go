package store

import (
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/INLOpen/synclog/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create log options for testing.
func testLogOptions(t *testing.T, path string) Options {
	t.Helper()
	return Options{
		Path:   path,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func openTestLog(t *testing.T, path string) *Log {
	t.Helper()
	l, err := Open(testLogOptions(t, path))
	require.NoError(t, err)
	return l
}

func TestOpen_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.slog")
	l := openTestLog(t, path)
	defer l.Close()

	size, err := l.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), size, "a new log should be logically empty")
	assert.Equal(t, RecoveryStats{}, l.RecoveryStats())

	// The header is stamped immediately so a crash before the first append
	// still leaves a recognizable file.
	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(core.HeaderSize), stat.Size())
}

func TestAppend_OffsetsAndSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.slog")
	l := openTestLog(t, path)
	defer l.Close()

	payloads := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}

	var prevSize uint64
	var offsets []uint64
	for _, p := range payloads {
		offset, err := l.Append(p)
		require.NoError(t, err)
		offsets = append(offsets, offset)

		// size() must reflect the append immediately, with no intervening
		// call: at least offset + encoded frame size.
		size, err := l.Size()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, size, offset+core.EncodedFrameSize(len(p)))
		assert.Greater(t, size, prevSize, "size must be strictly increasing across appends")
		prevSize = size
	}

	assert.Equal(t, uint64(0), offsets[0], "first record starts at offset 0")
	for i := 1; i < len(offsets); i++ {
		assert.Greater(t, offsets[i], offsets[i-1], "offsets must be monotonically increasing")
	}

	it, err := l.Iterator()
	require.NoError(t, err)
	defer it.Close()
	var got []Entry
	for it.Next() {
		entry, err := it.At()
		require.NoError(t, err)
		got = append(got, entry)
	}
	require.NoError(t, it.Error())
	require.Len(t, got, len(payloads))
	for i, entry := range got {
		assert.Equal(t, offsets[i], entry.Offset)
		assert.Equal(t, payloads[i], entry.Payload)
	}
}

func TestReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.slog")
	l := openTestLog(t, path)
	defer l.Close()

	payloads := [][]byte{[]byte("first"), {}, []byte("third record payload")}
	var offsets []uint64
	for _, p := range payloads {
		offset, err := l.Append(p)
		require.NoError(t, err)
		offsets = append(offsets, offset)
	}

	for i, offset := range offsets {
		got, err := l.ReadAt(offset)
		require.NoError(t, err)
		assert.Equal(t, payloads[i], append([]byte{}, got...))
	}

	size, err := l.Size()
	require.NoError(t, err)
	_, err = l.ReadAt(size)
	require.ErrorIs(t, err, core.ErrOutOfRange, "reading at exactly size() must be out of range")
	_, err = l.ReadAt(size + 100)
	require.ErrorIs(t, err, core.ErrOutOfRange)
}

func TestReadAt_EmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.slog")
	l := openTestLog(t, path)
	defer l.Close()

	_, err := l.ReadAt(0)
	require.ErrorIs(t, err, core.ErrOutOfRange)
}

func TestAppend_PayloadTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.slog")
	l := openTestLog(t, path)
	defer l.Close()

	before, err := l.Size()
	require.NoError(t, err)

	_, err = l.Append(make([]byte, core.MaxRecordSize+1))
	require.ErrorIs(t, err, core.ErrPayloadTooLarge)

	// Checked before any I/O: no side effect on the log or the file.
	after, err := l.Size()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	stat, statErr := os.Stat(path)
	require.NoError(t, statErr)
	assert.Equal(t, int64(core.HeaderSize), stat.Size())
}

func TestReopen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.slog")
	l := openTestLog(t, path)

	payloads := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	for _, p := range payloads {
		_, err := l.Append(p)
		require.NoError(t, err)
	}
	sizeBefore, err := l.Size()
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l2 := openTestLog(t, path)
	defer l2.Close()

	sizeAfter, err := l2.Size()
	require.NoError(t, err)
	assert.Equal(t, sizeBefore, sizeAfter, "clean close and reopen must not change size()")
	assert.Equal(t, RecoveryStats{Records: 3, TruncatedBytes: 0}, l2.RecoveryStats())

	it, err := l2.Iterator()
	require.NoError(t, err)
	defer it.Close()
	var got [][]byte
	for it.Next() {
		entry, err := it.At()
		require.NoError(t, err)
		got = append(got, entry.Payload)
	}
	require.NoError(t, it.Error())
	assert.Equal(t, payloads, got)
}

func TestUseAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.slog")
	l := openTestLog(t, path)

	offset, err := l.Append([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = l.Append([]byte("more"))
	assert.ErrorIs(t, err, core.ErrClosed)
	_, err = l.ReadAt(offset)
	assert.ErrorIs(t, err, core.ErrClosed)
	_, err = l.Size()
	assert.ErrorIs(t, err, core.ErrClosed)
	_, err = l.Iterator()
	assert.ErrorIs(t, err, core.ErrClosed)
	assert.ErrorIs(t, l.Close(), core.ErrClosed)
}

func TestOpen_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.slog")
	l := openTestLog(t, path)
	offset, err := l.Append([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	opts := testLogOptions(t, path)
	opts.ReadOnly = true
	ro, err := Open(opts)
	require.NoError(t, err)
	defer ro.Close()

	got, err := ro.ReadAt(offset)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	_, err = ro.Append([]byte("nope"))
	require.ErrorIs(t, err, core.ErrReadOnly)
}

func TestOpen_FormatMismatch(t *testing.T) {
	t.Run("ForeignContent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "not-a-log.txt")
		require.NoError(t, os.WriteFile(path, []byte("this file belongs to some other program"), 0644))

		_, err := Open(testLogOptions(t, path))
		require.ErrorIs(t, err, core.ErrFormatMismatch)
	})

	t.Run("ShorterThanHeader", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stub.slog")
		require.NoError(t, os.WriteFile(path, []byte{0x53, 0x4C}, 0644))

		_, err := Open(testLogOptions(t, path))
		require.ErrorIs(t, err, core.ErrFormatMismatch)
	})
}

func TestOpen_VersionGates(t *testing.T) {
	writeFileWithHeader := func(t *testing.T, h core.FileHeader) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "versioned.slog")
		content := core.EncodeHeader(h)
		frame, err := core.EncodeFrame([]byte("record"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, append(content, frame...), 0644))
		return path
	}

	t.Run("NewerMajorRefusesAnyOpen", func(t *testing.T) {
		h := core.NewFileHeader()
		h.Major = core.CurrentMajor + 1
		path := writeFileWithHeader(t, h)

		_, err := Open(testLogOptions(t, path))
		require.ErrorIs(t, err, core.ErrUnsupportedVersion)

		opts := testLogOptions(t, path)
		opts.ReadOnly = true
		_, err = Open(opts)
		require.ErrorIs(t, err, core.ErrUnsupportedVersion)
	})

	t.Run("NewerFormatOpensReadOnly", func(t *testing.T) {
		h := core.NewFileHeader()
		h.Format = core.CurrentFormat + 1
		path := writeFileWithHeader(t, h)

		_, err := Open(testLogOptions(t, path))
		require.ErrorIs(t, err, core.ErrUnsupportedVersion, "writable open of a newer format must fail")

		opts := testLogOptions(t, path)
		opts.ReadOnly = true
		ro, err := Open(opts)
		require.NoError(t, err, "read-only open of a newer format must succeed")
		defer ro.Close()

		got, err := ro.ReadAt(0)
		require.NoError(t, err)
		assert.Equal(t, []byte("record"), got)
	})
}

func TestOpen_Modes(t *testing.T) {
	t.Run("MustExist", func(t *testing.T) {
		opts := testLogOptions(t, filepath.Join(t.TempDir(), "absent.slog"))
		opts.Mode = MustExist
		_, err := Open(opts)
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("MustNotExist", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "present.slog")
		l := openTestLog(t, path)
		require.NoError(t, l.Close())

		opts := testLogOptions(t, path)
		opts.Mode = MustNotExist
		_, err := Open(opts)
		require.Error(t, err)
	})
}

func TestOpen_FileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.slog")
	l := openTestLog(t, path)

	opts := testLogOptions(t, path)
	opts.LockTimeout = 50 * time.Millisecond
	_, err := Open(opts)
	require.Error(t, err, "a second writable open must fail while the lock is held")

	require.NoError(t, l.Close())

	l2, err := Open(opts)
	require.NoError(t, err, "the lock must be released by Close")
	require.NoError(t, l2.Close())
}

func TestAppend_Metrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.slog")
	opts := testLogOptions(t, path)
	opts.BytesAppended = new(expvar.Int)
	opts.RecordsAppended = new(expvar.Int)

	l, err := Open(opts)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append([]byte("one"))
	require.NoError(t, err)
	_, err = l.Append([]byte("two!"))
	require.NoError(t, err)

	assert.Equal(t, int64(2), opts.RecordsAppended.Value())
	wantBytes := int64(core.EncodedFrameSize(3) + core.EncodedFrameSize(4))
	assert.Equal(t, wantBytes, opts.BytesAppended.Value())
}

func TestAppend_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.slog")
	l := openTestLog(t, path)
	defer l.Close()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := l.Append([]byte(fmt.Sprintf("worker-%d-record-%d", w, i)))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	it, err := l.Iterator()
	require.NoError(t, err)
	defer it.Close()

	seen := make(map[string]bool)
	var prevOffset uint64
	var count int
	for it.Next() {
		entry, err := it.At()
		require.NoError(t, err)
		if count > 0 {
			assert.Greater(t, entry.Offset, prevOffset, "no two appends may interleave their frames")
		}
		prevOffset = entry.Offset
		seen[string(entry.Payload)] = true
		count++
	}
	require.NoError(t, it.Error())
	assert.Equal(t, workers*perWorker, count)
	assert.Len(t, seen, workers*perWorker, "every append must be visible exactly once")
}
