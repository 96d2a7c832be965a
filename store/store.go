package store

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/INLOpen/synclog/core"
	"github.com/INLOpen/synclog/hooks"
	"github.com/INLOpen/synclog/sys"
	"go.opentelemetry.io/otel/trace"
)

// OpenMode controls how Open treats a missing or pre-existing file.
type OpenMode int

const (
	// MayCreate opens the file, creating it if it does not exist.
	MayCreate OpenMode = iota
	// MustExist fails if the file does not exist.
	MustExist
	// MustNotExist fails if the file already exists.
	MustNotExist
)

// DefaultLockTimeout bounds how long Open waits for the advisory file lock
// held by another process before failing.
const DefaultLockTimeout = 500 * time.Millisecond

// Options holds configuration for opening a log.
type Options struct {
	// Path is the backing file. Required.
	Path string
	// Mode controls creation behavior for writable opens.
	Mode OpenMode
	// ReadOnly opens the log for reading only. Read-only opens accept files
	// written by a newer format version and never take the file lock.
	ReadOnly bool
	// DisableFileLock skips the advisory <path>.lock acquisition. The lock
	// only turns the unsupported multi-writer case into a fast failure; it
	// is not part of the consistency model.
	DisableFileLock bool
	// LockTimeout overrides DefaultLockTimeout.
	LockTimeout time.Duration

	Logger          *slog.Logger
	BytesAppended   *expvar.Int
	RecordsAppended *expvar.Int
	HookManager     hooks.HookManager
	TracerProvider  trace.TracerProvider

	// OpenFile substitutes the file opener; tests use it to inject handles
	// that tear writes at a chosen byte.
	OpenFile sys.OpenFileFunc
}

// RecoveryStats describes what the open-time recovery scan found.
type RecoveryStats struct {
	// Records is the number of valid records in the logical prefix.
	Records uint64
	// TruncatedBytes is the number of physical bytes past the logical length
	// that were discarded from the logical view. Non-zero after reopening a
	// log whose tail was torn by a crash.
	TruncatedBytes uint64
}

// Log is an open append-only log file. All methods are safe for concurrent
// use; appends are serialized, reads are not blocked by appends.
type Log struct {
	path        string
	file        sys.FileHandle
	releaseLock func() error
	readOnly    bool
	header      core.FileHeader
	recovery    RecoveryStats

	logger      *slog.Logger
	tracer      trace.Tracer
	hookManager hooks.HookManager

	metricsBytesAppended   *expvar.Int
	metricsRecordsAppended *expvar.Int

	// mu serializes the append critical section (compute offset, write
	// frame, publish length) and Close.
	mu sync.Mutex
	// logicalLen is the validated record-region length in bytes. It is
	// published only after a frame is fully written, so concurrent readers
	// never observe a length that covers a partial frame.
	logicalLen atomic.Uint64
	closed     atomic.Bool
}

// Open opens or creates the log file at opts.Path, runs the recovery scan
// and positions the log for appending at the end of the validated prefix.
//
// Torn or corrupt frames at the tail are not an error: they are discarded
// from the logical view and reported through RecoveryStats. A file that is
// not a log of this format fails with core.ErrFormatMismatch; a log written
// by an incompatible version fails with core.ErrUnsupportedVersion.
func Open(opts Options) (*Log, error) {
	if opts.Path == "" {
		return nil, errors.New("store: Options.Path is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "synclog")
	} else {
		opts.Logger = opts.Logger.With("component", "synclog")
	}
	if opts.OpenFile == nil {
		opts.OpenFile = sys.OpenFile
	}
	if opts.LockTimeout == 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = trace.NewNoopTracerProvider()
	}

	l := &Log{
		path:                   opts.Path,
		readOnly:               opts.ReadOnly,
		logger:                 opts.Logger,
		tracer:                 opts.TracerProvider.Tracer("synclog"),
		hookManager:            opts.HookManager,
		metricsBytesAppended:   opts.BytesAppended,
		metricsRecordsAppended: opts.RecordsAppended,
	}

	_, span := l.tracer.Start(context.Background(), "Log.Open")
	defer span.End()

	if !opts.ReadOnly && !opts.DisableFileLock {
		release, err := sys.AcquireOSFileLock(opts.Path+".lock", opts.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire file lock for %s: %w", opts.Path, err)
		}
		l.releaseLock = release
	}

	file, err := l.openFile(opts)
	if err != nil {
		l.release()
		return nil, err
	}
	l.file = file

	if err := l.initialize(); err != nil {
		file.Close()
		l.release()
		return nil, err
	}

	if l.hookManager != nil {
		l.hookManager.Trigger(context.Background(), hooks.NewPostRecoveryEvent(hooks.PostRecoveryPayload{
			Path:           l.path,
			LogicalLength:  l.logicalLen.Load(),
			Records:        l.recovery.Records,
			TruncatedBytes: l.recovery.TruncatedBytes,
		}))
	}

	l.logger.Info("Log opened.",
		"path", l.path,
		"read_only", l.readOnly,
		"size", l.logicalLen.Load(),
		"records", l.recovery.Records,
		"truncated_bytes", l.recovery.TruncatedBytes)
	return l, nil
}

// openFile translates Options into the underlying open call.
func (l *Log) openFile(opts Options) (sys.FileHandle, error) {
	if opts.ReadOnly {
		file, err := opts.OpenFile(opts.Path, os.O_RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.Path, err)
		}
		return file, nil
	}

	flag := os.O_RDWR
	switch opts.Mode {
	case MayCreate:
		flag |= os.O_CREATE
	case MustExist:
		// no create flag
	case MustNotExist:
		flag |= os.O_CREATE | os.O_EXCL
	default:
		return nil, fmt.Errorf("store: unknown open mode %d", opts.Mode)
	}

	file, err := opts.OpenFile(opts.Path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", opts.Path, err)
	}
	return file, nil
}

// initialize reads or writes the file header and runs the recovery scan.
func (l *Log) initialize() error {
	stat, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat log file %s: %w", l.path, err)
	}
	physical := stat.Size()

	if physical == 0 {
		// Pristine file: logical length 0. Writable opens stamp the header
		// now; the single sync here is the only one the log ever issues.
		l.header = core.NewFileHeader()
		if l.readOnly {
			return nil
		}
		if _, err := l.file.WriteAt(core.EncodeHeader(l.header), 0); err != nil {
			return fmt.Errorf("failed to write file header to %s: %w", l.path, err)
		}
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync file header to %s: %w", l.path, err)
		}
		return nil
	}

	headerBytes := make([]byte, core.HeaderSize)
	if _, err := io.ReadFull(io.NewSectionReader(l.file, 0, core.HeaderSize), headerBytes); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: file %s is shorter than a header", core.ErrFormatMismatch, l.path)
		}
		return fmt.Errorf("failed to read file header from %s: %w", l.path, err)
	}
	header, err := core.DecodeHeader(headerBytes)
	if err != nil {
		return err
	}
	if !header.ReadCompatible() {
		return fmt.Errorf("%w: file major version %d, supported up to %d", core.ErrUnsupportedVersion, header.Major, core.CurrentMajor)
	}
	if !l.readOnly && !header.WriteCompatible() {
		return fmt.Errorf("%w: file format version %d is read-only for this implementation", core.ErrUnsupportedVersion, header.Format)
	}
	l.header = header

	validEnd, records, err := l.scan(uint64(physical) - core.HeaderSize)
	if err != nil {
		return err
	}
	l.recovery = RecoveryStats{
		Records:        records,
		TruncatedBytes: uint64(physical) - core.HeaderSize - validEnd,
	}
	l.logicalLen.Store(validEnd)
	if l.recovery.TruncatedBytes > 0 {
		l.logger.Warn("Discarded torn tail during recovery.",
			"path", l.path, "valid_end", validEnd, "truncated_bytes", l.recovery.TruncatedBytes)
	}
	return nil
}

// Append writes payload as one record and returns the offset at which it
// begins. The offset is stable across reopens and is the handle for ReadAt.
//
// The logical length is advanced only after the frame is fully written, so a
// failed or short write leaves the log exactly as it was. No fsync is issued;
// the record may be lost by a crash, but never half-visible.
func (l *Log) Append(payload []byte) (uint64, error) {
	if l.closed.Load() {
		return 0, core.ErrClosed
	}
	if l.readOnly {
		return 0, core.ErrReadOnly
	}

	_, span := l.tracer.Start(context.Background(), "Log.Append")
	defer span.End()

	if l.hookManager != nil {
		if err := l.hookManager.Trigger(context.Background(), hooks.NewPreAppendEvent(hooks.PreAppendPayload{Data: &payload})); err != nil {
			return 0, err
		}
	}

	frame, err := core.EncodeFrame(payload)
	if err != nil {
		return 0, err
	}

	offset, err := l.writeFrame(frame)

	if l.hookManager != nil {
		l.hookManager.Trigger(context.Background(), hooks.NewPostAppendEvent(hooks.PostAppendPayload{
			Offset:    offset,
			FrameSize: uint64(len(frame)),
			Error:     err,
		}))
	}
	if err != nil {
		return 0, err
	}

	if l.metricsBytesAppended != nil {
		l.metricsBytesAppended.Add(int64(len(frame)))
	}
	if l.metricsRecordsAppended != nil {
		l.metricsRecordsAppended.Add(1)
	}
	return offset, nil
}

// writeFrame holds the append critical section.
func (l *Log) writeFrame(frame []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return 0, core.ErrClosed
	}

	offset := l.logicalLen.Load()
	if _, err := l.file.WriteAt(frame, core.HeaderSize+int64(offset)); err != nil {
		// The logical length is untouched: whatever bytes of this frame did
		// reach the file sit past the logical end and stay invisible, both
		// to readers now and to the recovery scan after a reopen.
		return 0, fmt.Errorf("failed to write frame at offset %d: %w", offset, err)
	}

	// Publish last. Size() and readers must never see a length that covers
	// a frame the write call has not fully reported written.
	l.logicalLen.Store(offset + uint64(len(frame)))
	return offset, nil
}

// Size returns the logical length of the log: the end offset of the last
// fully appended record. It reflects every completed Append immediately.
func (l *Log) Size() (uint64, error) {
	if l.closed.Load() {
		return 0, core.ErrClosed
	}
	return l.logicalLen.Load(), nil
}

// Header returns the file header the log was opened with.
func (l *Log) Header() core.FileHeader {
	return l.header
}

// RecoveryStats reports what the open-time scan found, including how many
// torn bytes were discarded. A crash between Append and a later flush shows
// up here on the next open rather than as an error.
func (l *Log) RecoveryStats() RecoveryStats {
	return l.recovery
}

// Path returns the backing file path.
func (l *Log) Path() string {
	return l.path
}

// Close releases the file handle and the advisory lock. Any operation on a
// closed log fails with core.ErrClosed, including a second Close.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Swap(true) {
		return core.ErrClosed
	}

	err := l.file.Close()
	if relErr := l.release(); err == nil {
		err = relErr
	}

	if l.hookManager != nil {
		l.hookManager.Trigger(context.Background(), hooks.NewPostCloseEvent(hooks.PostClosePayload{
			Path:  l.path,
			Error: err,
		}))
	}

	if err != nil {
		l.logger.Error("Error during log close.", "path", l.path, "error", err)
		return fmt.Errorf("failed to close log %s: %w", l.path, err)
	}
	l.logger.Info("Log closed.", "path", l.path)
	return nil
}

// release drops the advisory lock if one is held.
func (l *Log) release() error {
	if l.releaseLock == nil {
		return nil
	}
	rel := l.releaseLock
	l.releaseLock = nil
	return rel()
}
