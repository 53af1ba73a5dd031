// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package index builds the 256 open-addressed hash tables at the end of a
// cdb file.
//
// Entries are routed to a bucket by the low 8 bits of their hash.  Each
// bucket gets a table with twice as many slots as entries, so tables are at
// most half full and a linear probe always terminates.
package index

import (
	"fmt"
	"log/slog"

	"github.com/bpowers/cdb/internal/bitset"
	"github.com/bpowers/cdb/internal/datafile"
	"github.com/bpowers/cdb/internal/zero"
)

// TableWriter is implemented by *datafile.Writer.
type TableWriter interface {
	WriteTable(slots []datafile.Slot) (pos uint32, err error)
}

// StartSlot returns the first slot to probe for hash in a table of the given size.
func StartSlot(hash, slots uint32) uint32 {
	return (hash / datafile.NumTables) % slots
}

// Accumulator collects a (hash, position) pair for every record as it is
// written, grouped by bucket.  Table sizes are only known once every record
// has been seen, so slot placement waits until Build.
type Accumulator struct {
	buckets [datafile.NumTables][]datafile.Slot
	count   int
}

// Add records that the record at pos has a key with the given hash.
func (a *Accumulator) Add(hash, pos uint32) {
	n := hash % datafile.NumTables
	a.buckets[n] = append(a.buckets[n], datafile.Slot{Hash: hash, Position: pos})
	a.count++
}

// Len returns the number of entries added.
func (a *Accumulator) Len() int {
	return a.count
}

// Bucket returns the entries routed to bucket n, in insertion order.
func (a *Accumulator) Bucket(n int) []datafile.Slot {
	return a.buckets[n]
}

// Reset drops all accumulated entries.
func (a *Accumulator) Reset() {
	zero.Slice(a.buckets[:])
	a.count = 0
}

// Place fills table, which must be twice the length of entries and all
// empty, by linear probing from each entry's start slot.  Entries are
// placed in order, so entries sharing a hash end up in insertion order along
// the probe sequence.
func Place(table []datafile.Slot, entries []datafile.Slot, occ *bitset.Bitset) {
	n := uint32(len(table))
	occ.Reset(int64(n))
	for _, e := range entries {
		i := StartSlot(e.Hash, n)
		for occ.IsSet(int64(i)) {
			i++
			if i == n {
				i = 0
			}
		}
		occ.Set(int64(i))
		table[i] = e
	}
}

// Build writes the hash table for every bucket to w, in bucket order, and
// returns the header describing where they landed.
func (a *Accumulator) Build(w TableWriter, logger *slog.Logger) (*datafile.Header, error) {
	maxLen := 0
	for _, b := range a.buckets {
		maxLen = max(maxLen, len(b))
	}

	logger.Debug("building hash tables", "entries", a.count, "largest_bucket", maxLen)

	var (
		h       datafile.Header
		scratch = make([]datafile.Slot, 2*maxLen)
		occ     = bitset.New(int64(len(scratch)))
	)
	for n, entries := range a.buckets {
		table := scratch[:2*len(entries)]
		zero.Slice(table)
		Place(table, entries, occ)

		pos, err := w.WriteTable(table)
		if err != nil {
			return nil, fmt.Errorf("WriteTable(%d): %w", n, err)
		}
		h[n] = datafile.TableInfo{Position: pos, Slots: uint32(len(table))}
	}

	return &h, nil
}
