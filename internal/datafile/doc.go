// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package datafile contains the on-disk structures of a cdb file and the
// low-level code to write and read them.
//
// A cdb file looks like:
//
//	┌───────────────────┐
//	│ header            │ 256 x (table position, table slots)
//	├───────────────────┤
//	│ repeated KV pairs │
//	│                   │
//	│                   │
//	│                   │
//	├───────────────────┤
//	│ hash table 0      │
//	├───────────────────┤
//	│ ...               │
//	├───────────────────┤
//	│ hash table 255    │
//	└───────────────────┘
//
// Records start with a fixed 8-byte header and are variable length:
//
//	 0    1    2    3    4    5    6    7
//	+----+----+----+----+----+----+----+----+
//	| key length        | value length      |
//	+----+----+----+----+----+----+----+----+
//	| key...       | value...               |
//	+----+----+----+----+----+----+----+----+
//
// Hash table slots are a (hash, record position) pair of 32-bit integers.  A
// slot with a position of 0 is empty: offset 0 is inside the header, so no
// record can live there.  Every integer is little-endian, and every offset is
// absolute from the start of the file, which limits a file to 4 GB.
package datafile
