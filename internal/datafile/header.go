// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	NumTables        = 256
	HeaderSize       = NumTables * 8
	RecordHeaderSize = 4 + 4 // 32-bit key length + 32-bit value length
	SlotSize         = 4 + 4 // 32-bit hash + 32-bit record position

	// MaxOffset is the largest offset representable in a cdb file.
	MaxOffset = (1 << 32) - 1
)

// TableInfo locates one bucket's hash table.
type TableInfo struct {
	Position uint32
	Slots    uint32
}

// Header is the fixed-size table of contents at the start of every cdb file.
type Header [NumTables]TableInfo

// Table returns the hash table for the bucket the given hash selects.
func (h *Header) Table(hash uint32) TableInfo {
	return h[hash%NumTables]
}

// RecordsEnd returns the offset one past the last record.  Tables are written
// in bucket order directly after the records, so this is where table 0 starts.
func (h *Header) RecordsEnd() uint32 {
	return h[0].Position
}

func (h *Header) MarshalTo(headerBytes []byte) error {
	if len(headerBytes) < HeaderSize {
		return fmt.Errorf("headerBytes too short: %d < %d", len(headerBytes), HeaderSize)
	}
	for i, t := range h {
		binary.LittleEndian.PutUint32(headerBytes[i*8:i*8+4], t.Position)
		binary.LittleEndian.PutUint32(headerBytes[i*8+4:i*8+8], t.Slots)
	}
	return nil
}

// WriteAt writes the header to the start of w.
func (h *Header) WriteAt(w io.WriterAt) error {
	var headerBuf [HeaderSize]byte
	if err := h.MarshalTo(headerBuf[:]); err != nil {
		return err
	}
	if _, err := w.WriteAt(headerBuf[:], 0); err != nil {
		return fmt.Errorf("WriteAt: %w", err)
	}
	return nil
}

// UnmarshalBytes decodes a header and checks that every hash table it names
// lies within a file of fileSize bytes.
func (h *Header) UnmarshalBytes(headerBytes []byte, fileSize int64) error {
	if len(headerBytes) < HeaderSize || fileSize < HeaderSize {
		return fmt.Errorf("%w: too short: %d < %d", ErrCorruptHeader, min(int64(len(headerBytes)), fileSize), HeaderSize)
	}

	for i := range h {
		pos := binary.LittleEndian.Uint32(headerBytes[i*8 : i*8+4])
		slots := binary.LittleEndian.Uint32(headerBytes[i*8+4 : i*8+8])
		if slots > 0 {
			end := uint64(pos) + uint64(slots)*SlotSize
			if pos < HeaderSize || end > uint64(fileSize) {
				return fmt.Errorf("%w: table %d [%d, %d) outside of file (size %d)", ErrCorruptHeader, i, pos, end, fileSize)
			}
		}
		h[i] = TableInfo{Position: pos, Slots: slots}
	}

	if end := h.RecordsEnd(); end < HeaderSize || int64(end) > fileSize {
		return fmt.Errorf("%w: records end %d outside of file (size %d)", ErrCorruptHeader, end, fileSize)
	}

	return nil
}
