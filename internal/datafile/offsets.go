// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import "golang.org/x/exp/constraints"

// fitsOffset reports whether n can be stored in a 32-bit length or offset field.
func fitsOffset[T constraints.Integer](n T) bool {
	return n >= 0 && uint64(n) <= MaxOffset
}

// span returns off+n as a 64-bit value, so it never wraps.
func span[A, B constraints.Unsigned](off A, n B) uint64 {
	return uint64(off) + uint64(n)
}
