// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cdb

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bpowers/cdb/internal/atomicfile"
	"github.com/bpowers/cdb/internal/cdbhash"
	"github.com/bpowers/cdb/internal/datafile"
	"github.com/bpowers/cdb/internal/flock"
	"github.com/bpowers/cdb/internal/index"
)

// swapped out in tests to simulate failures
var commit = (*atomicfile.File).Commit

// BuilderOption configures the Builder.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	logger     *slog.Logger
	tempPath   string
	writerLock bool
	lockNoWait bool
	mode       os.FileMode
}

// WithBuilderLogger sets an optional logger for the builder to use for progress updates.
// If not provided, no logging output will be produced.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(opts *builderOptions) {
		opts.logger = logger
	}
}

// WithTempPath sets the path records are written to before Finish renames
// it over the destination.  It must be on the same filesystem as the
// destination.  By default a uniquely named file in the destination's
// directory is used.
func WithTempPath(path string) BuilderOption {
	return func(opts *builderOptions) {
		opts.tempPath = path
	}
}

// WithWriterLock makes the builder hold an exclusive flock(2) on the
// destination path plus ".lock" from creation until Finish or Abort, so
// builders in cooperating processes take turns replacing the same database.
func WithWriterLock() BuilderOption {
	return func(opts *builderOptions) {
		opts.writerLock = true
	}
}

// WithTryWriterLock is like WithWriterLock, but Create fails with ErrLocked
// instead of waiting when another builder holds the lock.
func WithTryWriterLock() BuilderOption {
	return func(opts *builderOptions) {
		opts.writerLock = true
		opts.lockNoWait = true
	}
}

// WithFileMode sets the permissions of the published file (default 0444).
func WithFileMode(mode os.FileMode) BuilderOption {
	return func(opts *builderOptions) {
		opts.mode = mode
	}
}

// Pair is a key/value pair, for use with Pairs.
type Pair struct {
	Key   []byte
	Value []byte
}

// Pairs returns a sequence over pairs, suitable for Builder.AddMany.
func Pairs(pairs []Pair) iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		for _, p := range pairs {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// Builder constructs a new cdb file from key/value pairs.  The file only
// becomes visible at its destination once Finish succeeds.  A Builder is not
// safe for concurrent use.
type Builder struct {
	f      *atomicfile.File
	w      *datafile.Writer
	acc    index.Accumulator
	lock   *flock.Lock
	mode   os.FileMode
	logger *slog.Logger
	start  time.Time
	closed atomic.Bool
}

// Create starts building a database that will be published at path.  Every
// Builder must end with Finish or Abort; one that is garbage collected first
// has its temporary file removed, but only whenever the collector gets to it.
func Create(path string, opts ...BuilderOption) (*Builder, error) {
	options := builderOptions{
		mode: 0444,
	}
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}

	var lock *flock.Lock
	if options.writerLock {
		var err error
		if options.lockNoWait {
			lock, err = flock.TryAcquire(path + ".lock")
		} else {
			lock, err = flock.Acquire(path + ".lock")
		}
		if err != nil {
			return nil, ioErr("flock", err)
		}
	}

	f, err := atomicfile.Create(path, options.tempPath)
	if err != nil {
		_ = lock.Release()
		return nil, ioErr("atomicfile.Create", err)
	}
	w, err := datafile.NewWriter(f)
	if err != nil {
		_ = f.Abort()
		_ = lock.Release()
		return nil, ioErr("datafile.NewWriter", err)
	}

	options.logger.Debug("cdb build started", "path", f.Path(), "temp_path", f.TempPath())

	b := &Builder{
		f:      f,
		w:      w,
		lock:   lock,
		mode:   options.mode,
		logger: options.logger,
		start:  time.Now(),
	}
	runtime.SetFinalizer(b, (*Builder).abandon)
	return b, nil
}

// Add appends a key/value pair.  Keys may be added more than once; every
// value is kept.  Add doesn't retain key or value.
func (b *Builder) Add(key, value []byte) error {
	if b.closed.Load() {
		return ErrClosedBuilder
	}
	off, err := b.w.Write(key, value)
	if err != nil {
		return ioErr("datafile.Write", err)
	}
	b.acc.Add(cdbhash.Sum32(key), off)
	return nil
}

// AddMany adds every pair in seq, in order, exactly as if Add had been
// called for each.  seq may be lazy; it is consumed once.  If an Add fails,
// AddMany stops consuming seq and returns the error.
func (b *Builder) AddMany(seq iter.Seq2[[]byte, []byte]) error {
	if b.closed.Load() {
		return ErrClosedBuilder
	}
	for k, v := range seq {
		if err := b.Add(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of pairs added so far.
func (b *Builder) Len() int {
	return int(b.w.Len())
}

// Path returns the absolute path the database is published to.
func (b *Builder) Path() string {
	return b.f.Path()
}

// TempPath returns the path of the file being built.
func (b *Builder) TempPath() string {
	return b.f.TempPath()
}

// Finish writes the hash tables and header, flushes the file to stable
// storage and atomically renames it to its destination.  After Finish,
// whether it succeeded or not, the Builder is closed and the temporary file
// is gone.
//
// An error matching ErrNotDurable means the new file is already in place,
// but the directory couldn't be synced, so it may not survive a crash.  Any
// other error leaves the previous file at the destination untouched.
func (b *Builder) Finish() error {
	if alreadyClosed := b.closed.Swap(true); alreadyClosed {
		return ErrClosedBuilder
	}
	defer b.release()

	if err := b.finish(); err != nil {
		if errors.Is(err, ErrNotDurable) {
			b.logger.Warn("cdb published, but may not survive a crash", "path", b.f.Path(), "error", err)
			return err
		}
		_ = b.f.Abort()
		b.logger.Warn("cdb build failed", "path", b.f.Path(), "error", err)
		return err
	}

	b.logger.Info("cdb build finished",
		"path", b.f.Path(),
		"records", b.acc.Len(),
		"bytes", b.w.Offset(),
		"duration", time.Since(b.start))

	return nil
}

func (b *Builder) finish() error {
	h, err := b.acc.Build(b.w, b.logger)
	if err != nil {
		return ioErr("index.Build", err)
	}
	if err := b.w.Finish(h); err != nil {
		return ioErr("datafile.Finish", err)
	}
	if err := commit(b.f, b.mode); err != nil {
		return ioErr(fmt.Sprintf("publish %s", b.f.Path()), err)
	}
	return nil
}

// Abort discards the database being built, leaving whatever is at the
// destination untouched.  It is safe to call after Finish, which makes
// `defer b.Abort()` a convenient way to clean up on error paths.
func (b *Builder) Abort() error {
	if alreadyClosed := b.closed.Swap(true); alreadyClosed {
		return nil
	}
	defer b.release()

	b.logger.Debug("cdb build aborted", "path", b.f.Path(), "records", b.acc.Len())
	if err := b.f.Abort(); err != nil {
		return ioErr("atomicfile.Abort", err)
	}
	return nil
}

// abandon cleans up after a Builder that was dropped without Finish or Abort.
func (b *Builder) abandon() {
	if b.closed.Load() {
		return
	}
	b.logger.Warn("cdb builder dropped without Finish or Abort", "path", b.f.Path(), "temp_path", b.f.TempPath())
	_ = b.Abort()
}

func (b *Builder) release() {
	runtime.SetFinalizer(b, nil)
	if err := b.lock.Release(); err != nil {
		b.logger.Warn("releasing writer lock failed", "path", b.f.Path(), "error", err)
	}
	b.lock = nil
	b.acc.Reset()
}
