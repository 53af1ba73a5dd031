// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cdb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/bpowers/cdb/internal/cdbhash"
	"github.com/bpowers/cdb/internal/datafile"
	"github.com/bpowers/cdb/internal/index"
	"github.com/bpowers/cdb/internal/unsafestring"
)

// ReaderOption configures a Reader.
type ReaderOption func(*readerOptions)

type readerOptions struct {
	logger *slog.Logger
	mmap   bool
}

// WithReaderLogger sets an optional logger for non-fatal problems, like the
// kernel rejecting access pattern hints.
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(opts *readerOptions) {
		opts.logger = logger
	}
}

// WithoutMmap makes Open read the file with positioned reads instead of
// mapping it into memory.  Lookups then allocate their results.
func WithoutMmap() ReaderOption {
	return func(opts *readerOptions) {
		opts.mmap = false
	}
}

func newReaderOptions(opts []ReaderOption) readerOptions {
	options := readerOptions{
		mmap: true,
	}
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Reader looks up values in a finished cdb file.  It is safe for concurrent
// use by multiple goroutines, and many Readers, in any number of processes,
// may read the same file.
//
// When the file is memory mapped (the default for Open), returned keys and
// values point into the mapping: they must not be modified, and are only
// valid until Close.
type Reader struct {
	r    datafile.Reader
	name string
	// record count plus one, or zero if not yet counted
	numRecords atomic.Uint64
}

// Open opens the cdb file at path.
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	options := newReaderOptions(opts)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, ioErr("os.Open", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ioErr("f.Stat", err)
	}

	var r datafile.Reader
	if options.mmap {
		// the mapping outlives the descriptor
		defer func() {
			_ = f.Close()
		}()
		mr, err := datafile.NewMmapReader(f, fi.Size())
		if err != nil {
			return nil, fmt.Errorf("datafile.NewMmapReader(%s): %w", path, err)
		}
		if err := mr.Advise(); err != nil {
			options.logger.Warn("madvise failed, continuing anyway", "path", path, "error", err)
		}
		r = mr
	} else {
		fr, err := datafile.NewFileReader(f, fi.Size())
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("datafile.NewFileReader(%s): %w", path, err)
		}
		r = fr
	}

	return &Reader{
		r:    r,
		name: path,
	}, nil
}

// New returns a Reader for the size-byte cdb file behind r, such as an
// already open *os.File.  Close closes r if it is an io.Closer.
func New(r io.ReaderAt, size int64) (*Reader, error) {
	fr, err := datafile.NewFileReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("datafile.NewFileReader: %w", err)
	}
	return &Reader{r: fr}, nil
}

// Name returns the path the Reader was opened with, or "" for New.
func (r *Reader) Name() string {
	return r.name
}

// Size returns the size of the file in bytes.
func (r *Reader) Size() int64 {
	return r.r.Size()
}

// Close releases the file.  It is safe to call more than once.
func (r *Reader) Close() error {
	if err := r.r.Close(); err != nil {
		return ioErr("Close", err)
	}
	return nil
}

// Get returns the first value stored under key.  ok is false if there is none.
func (r *Reader) Get(key []byte) (value []byte, ok bool, err error) {
	var f Finder
	f.reset(r, key)
	return f.Next()
}

// GetString is like Get, but doesn't allocate to convert key.
func (r *Reader) GetString(key string) (value []byte, ok bool, err error) {
	return r.Get(unsafestring.ToBytes(key))
}

// GetNth returns the value stored under key after skipping the first n.
func (r *Reader) GetNth(key []byte, n int) (value []byte, ok bool, err error) {
	var f Finder
	f.reset(r, key)
	for {
		value, ok, err = f.Next()
		if !ok || err != nil || n == 0 {
			return value, ok, err
		}
		n--
	}
}

// GetAll returns every value stored under key.  Values added with the same
// key come back in the order they were added, except when other keys'
// entries collide with them in the hash table, in which case the order is
// unspecified.
func (r *Reader) GetAll(key []byte) ([][]byte, error) {
	var values [][]byte
	f := r.Find(key)
	for {
		v, ok, err := f.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return values, nil
		}
		values = append(values, v)
	}
}

// Has reports whether any value is stored under key.
func (r *Reader) Has(key []byte) (bool, error) {
	_, ok, err := r.Get(key)
	return ok, err
}

// Len returns the number of records in the database, counting every value
// of a repeated key.  The first call walks the whole file.
func (r *Reader) Len() (int, error) {
	if n := r.numRecords.Load(); n > 0 {
		return int(n - 1), nil
	}

	n := 0
	it := r.Records()
	for it.Next() {
		n++
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	r.numRecords.Store(uint64(n) + 1)
	return n, nil
}

// Finder walks the values stored under one key.  A Finder is not safe for
// concurrent use, but any number of them may share a Reader.
type Finder struct {
	r     *Reader
	key   []byte
	hash  uint32
	table datafile.TableInfo
	// slots visited so far; never more than table.Slots
	loop uint32
	slot uint32
	pos  uint32
}

// Find returns a Finder over the values stored under key.  The Finder keeps
// a reference to key, which must not be modified while it is in use.
func (r *Reader) Find(key []byte) *Finder {
	f := &Finder{}
	f.reset(r, key)
	return f
}

func (f *Finder) reset(r *Reader, key []byte) {
	h := cdbhash.Sum32(key)
	*f = Finder{
		r:     r,
		key:   key,
		hash:  h,
		table: r.r.Header().Table(h),
	}
	if f.table.Slots > 0 {
		f.slot = index.StartSlot(h, f.table.Slots)
	}
}

// Next returns the next value stored under the key.  ok is false once there
// are no more.  An error (such as ErrCorruptRecord) ends this search, but
// doesn't affect the Reader.
func (f *Finder) Next() (value []byte, ok bool, err error) {
	dr := f.r.r
	for f.loop < f.table.Slots {
		s, err := dr.ReadSlot(f.table.Position, f.slot)
		if err != nil {
			f.loop = f.table.Slots
			return nil, false, err
		}
		f.loop++
		f.slot++
		if f.slot == f.table.Slots {
			f.slot = 0
		}

		if s.Position == 0 {
			// an empty slot: insertion never probes past one
			f.loop = f.table.Slots
			return nil, false, nil
		}
		if s.Hash != f.hash {
			continue
		}

		keyLen, valueLen, err := dr.ReadRecordHeader(s.Position)
		if err != nil {
			f.loop = f.table.Slots
			return nil, false, err
		}
		if int(keyLen) != len(f.key) {
			continue
		}
		keyOff := s.Position + datafile.RecordHeaderSize
		key, err := dr.ReadBytes(keyOff, keyLen)
		if err != nil {
			f.loop = f.table.Slots
			return nil, false, err
		}
		if !bytes.Equal(key, f.key) {
			continue
		}
		value, err := dr.ReadBytes(keyOff+keyLen, valueLen)
		if err != nil {
			f.loop = f.table.Slots
			return nil, false, err
		}
		f.pos = s.Position
		return value, true, nil
	}
	return nil, false, nil
}

// Position returns the file offset of the record Next last returned.
func (f *Finder) Position() uint32 {
	return f.pos
}
