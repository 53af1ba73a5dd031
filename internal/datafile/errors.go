// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import "errors"

var (
	ErrCorruptHeader = errors.New("corrupt cdb header")
	ErrCorruptRecord = errors.New("corrupt cdb record")
	ErrTooLarge      = errors.New("cdb file would exceed 4 GB")
	ErrIO            = errors.New("cdb I/O failure")
	ErrClosed        = errors.New("cdb reader is closed")
)
