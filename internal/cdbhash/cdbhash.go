// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package cdbhash implements the 32-bit hash used by cdb files.
//
// Files are only portable between implementations if this function is
// reproduced bit-for-bit, including 32-bit wraparound.
package cdbhash

import "hash"

const (
	// Seed is the initial hash state.
	Seed = uint32(5381)

	size = 4
)

// Sum32 returns the cdb hash of b.
func Sum32(b []byte) uint32 {
	h := Seed
	for _, c := range b {
		h = ((h << 5) + h) ^ uint32(c)
	}
	return h
}

type digest uint32

// New returns a streaming hash.Hash32 computing the same value as Sum32.
func New() hash.Hash32 {
	d := digest(Seed)
	return &d
}

func (d *digest) Write(p []byte) (int, error) {
	h := uint32(*d)
	for _, c := range p {
		h = ((h << 5) + h) ^ uint32(c)
	}
	*d = digest(h)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return uint32(*d) }
func (d *digest) Reset()        { *d = digest(Seed) }
func (d *digest) Size() int     { return size }
func (d *digest) BlockSize() int {
	return 1
}

// Sum appends the big-endian hash to in, matching hash/fnv.
func (d *digest) Sum(in []byte) []byte {
	v := uint32(*d)
	return append(in, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
