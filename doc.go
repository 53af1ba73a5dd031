// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package cdb reads and writes cdb ("constant database") files: immutable
// mappings from byte-string keys to byte-string values, built once and then
// read many times with fast, allocation-free lookups.
//
// Files are compatible with D. J. Bernstein's cdb format
// (http://cr.yp.to/cdb.html): a 2048-byte header of 256 hash table
// locations, the records themselves, then 256 open-addressed hash tables.
// A key may be stored more than once; every value added under it can be
// retrieved.
//
// A Builder writes to a temporary file next to its destination and renames
// it into place when finished, so a reader opening the path sees either the
// complete old database or the complete new one:
//
//	b, err := cdb.Create("/var/db/users.cdb")
//	if err != nil { ... }
//	defer b.Abort()
//	if err := b.Add([]byte("alice"), []byte("1001")); err != nil { ... }
//	if err := b.Finish(); err != nil { ... }
//
//	r, err := cdb.Open("/var/db/users.cdb")
//	if err != nil { ... }
//	defer r.Close()
//	uid, ok, err := r.Get([]byte("alice"))
//
// Updating a database means building a new one: there is no in-place
// mutation or deletion.
package cdb

import (
	"hash"

	"github.com/bpowers/cdb/internal/cdbhash"
)

// Hash returns the 32-bit cdb hash of b.
func Hash(b []byte) uint32 {
	return cdbhash.Sum32(b)
}

// NewHash returns a hash.Hash32 computing the same value as Hash
// incrementally.
func NewHash() hash.Hash32 {
	return cdbhash.New()
}
