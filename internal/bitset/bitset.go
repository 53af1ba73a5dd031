// Copyright 2021 The bit Authors and Caleb Spare. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package bitset

import "github.com/bpowers/cdb/internal/zero"

// Bitset is an in-memory bitmap that is conceptually similar to []bool, but more memory efficient.
type Bitset struct {
	bits   []uint64
	length int64
}

func getOffsets(off int64) (sliceOff int64, bitOff uint64) {
	sliceOff = off / 64
	bitOff = uint64(off) % 64
	return
}

// Set sets the bit at position `off` to 1.
func (b *Bitset) Set(off int64) {
	if off >= b.length {
		return
	}
	sliceOff, bitOff := getOffsets(off)
	b.bits[sliceOff] |= 1 << bitOff
}

// IsSet returns true if the bit at position `off` is 1.
func (b *Bitset) IsSet(off int64) bool {
	if off >= b.length {
		return false
	}
	sliceOff, bitOff := getOffsets(off)
	return b.bits[sliceOff]&(1<<bitOff) != 0
}

// Reset clears every bit and resizes the bitset to `length` bits, reusing
// the existing allocation when it is big enough.
func (b *Bitset) Reset(length int64) {
	sliceLen := (length + 63) / 64
	if int64(cap(b.bits)) < sliceLen {
		b.bits = make([]uint64, sliceLen)
	} else {
		b.bits = b.bits[:sliceLen]
		zero.Slice(b.bits)
	}
	b.length = length
}

// New returns a new in-memory bitset where you can set and test for individual bits.
func New(length int64) *Bitset {
	b := &Bitset{}
	b.Reset(length)
	return b
}
