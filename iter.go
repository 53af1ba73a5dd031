// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cdb

import (
	"fmt"
	"iter"

	"github.com/bpowers/cdb/internal/datafile"
)

// RecordIter walks every record in file order, including each value of a
// repeated key.  Use it like a bufio.Scanner:
//
//	it := r.Records()
//	for it.Next() {
//		fmt.Printf("%s: %s\n", it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type RecordIter struct {
	r          *Reader
	next       uint64
	end        uint64
	pos        uint32
	key, value []byte
	err        error
}

// Records returns an iterator over every record in the database.
func (r *Reader) Records() *RecordIter {
	return &RecordIter{
		r:    r,
		next: datafile.HeaderSize,
		end:  uint64(r.r.Header().RecordsEnd()),
	}
}

// Next advances to the next record, returning false at the end of the
// records or on error.
func (it *RecordIter) Next() bool {
	if it.err != nil || it.next >= it.end {
		it.key, it.value = nil, nil
		return false
	}

	dr := it.r.r
	pos := uint32(it.next)
	keyLen, valueLen, err := dr.ReadRecordHeader(pos)
	if err != nil {
		it.err = err
		return false
	}
	recordEnd := it.next + datafile.RecordHeaderSize + uint64(keyLen) + uint64(valueLen)
	if recordEnd > it.end {
		it.err = fmt.Errorf("%w: record at %d runs into the hash tables at %d", ErrCorruptRecord, pos, it.end)
		return false
	}

	keyOff := pos + datafile.RecordHeaderSize
	if it.key, err = dr.ReadBytes(keyOff, keyLen); err != nil {
		it.err = err
		return false
	}
	if it.value, err = dr.ReadBytes(keyOff+keyLen, valueLen); err != nil {
		it.err = err
		return false
	}

	it.pos = pos
	it.next = recordEnd
	return true
}

// Key returns the key of the current record.
func (it *RecordIter) Key() []byte {
	return it.key
}

// Value returns the value of the current record.
func (it *RecordIter) Value() []byte {
	return it.value
}

// Position returns the file offset of the current record.
func (it *RecordIter) Position() uint32 {
	return it.pos
}

// Err returns the error, if any, that stopped iteration.
func (it *RecordIter) Err() error {
	return it.err
}

// All returns the remaining records as a sequence for range loops.  Check
// Err once the loop ends.
func (it *RecordIter) All() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		for it.Next() {
			if !yield(it.key, it.value) {
				return
			}
		}
	}
}

// All returns every record in file order as a sequence for range loops.
// A corrupt record ends the sequence early; use Records to see the error.
func (r *Reader) All() iter.Seq2[[]byte, []byte] {
	return r.Records().All()
}

// KeyIter walks the distinct keys of a database, each reported at the
// record a lookup of it finds first.  That is normally the order keys were
// first added in.
type KeyIter struct {
	records *RecordIter
	err     error
}

// Keys returns an iterator over the distinct keys in the database.
func (r *Reader) Keys() *KeyIter {
	return &KeyIter{records: r.Records()}
}

// Next advances to the next distinct key.
func (it *KeyIter) Next() bool {
	if it.err != nil {
		return false
	}
	var f Finder
	for it.records.Next() {
		key := it.records.Key()
		f.reset(it.records.r, key)
		_, ok, err := f.Next()
		if err != nil {
			it.err = err
			return false
		}
		if !ok {
			it.err = fmt.Errorf("%w: record at %d is missing from the hash tables", ErrCorruptRecord, it.records.Position())
			return false
		}
		// a key is reported at the record its lookups find first
		if f.Position() == it.records.Position() {
			return true
		}
	}
	return false
}

// Key returns the current key.
func (it *KeyIter) Key() []byte {
	return it.records.Key()
}

// Err returns the error, if any, that stopped iteration.
func (it *KeyIter) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.records.Err()
}
