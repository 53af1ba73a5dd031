// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cdb

import (
	"errors"
	"fmt"

	"github.com/bpowers/cdb/internal/atomicfile"
	"github.com/bpowers/cdb/internal/datafile"
	"github.com/bpowers/cdb/internal/flock"
)

var (
	// ErrClosedBuilder is returned by Builder methods called after Finish or Abort.
	ErrClosedBuilder = errors.New("cdb: builder already finished")
	// ErrNotFound is returned by Open when the database file doesn't exist.
	// Such errors also match fs.ErrNotExist.
	ErrNotFound = errors.New("cdb: database not found")
	// ErrCorruptHeader is returned when a file is too short to hold a
	// header, or its header points outside of the file.
	ErrCorruptHeader = datafile.ErrCorruptHeader
	// ErrCorruptRecord is returned when a record's length fields run past
	// the end of the file.  The Reader stays usable.
	ErrCorruptRecord = datafile.ErrCorruptRecord
	// ErrTooLarge is returned by Add when the database would no longer be
	// addressable with 32-bit offsets.
	ErrTooLarge = datafile.ErrTooLarge
	// ErrIO wraps failures of the underlying storage.
	ErrIO = datafile.ErrIO
	// ErrClosed is returned by Reader methods called after Close.
	ErrClosed = datafile.ErrClosed
	// ErrLocked is returned by Create with WithTryWriterLock when another
	// builder holds the writer lock.
	ErrLocked = flock.ErrLocked
	// ErrNotDurable is returned by Finish when the new file was published
	// but the directory holding it couldn't be synced.  Readers opening the
	// path already see the new file.
	ErrNotDurable = atomicfile.ErrNotDurable
)

// ioErr wraps err so that it matches ErrIO, unless it already carries one
// of our more specific errors.
func ioErr(op string, err error) error {
	for _, known := range []error{ErrIO, ErrTooLarge, ErrCorruptHeader, ErrCorruptRecord, ErrClosed, ErrLocked, ErrNotDurable} {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
