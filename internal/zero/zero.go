// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package zero provides functions to zero slices that are reused as scratch space.
package zero

// Slice sets every element of s to its zero value, leaving len and cap alone.
func Slice[T any](s []T) {
	var zero T
	for i := range s {
		s[i] = zero
	}
}
