// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

const (
	defaultBufferSize = 4 * 1024 * 1024

	// each record eventually needs two slots in its bucket's hash table
	tableBytesPerRecord = 2 * SlotSize
)

type nopWriter struct{}

func (nopWriter) Write([]byte) (int, error) {
	return 0, io.EOF
}

// FileWriter is usually an *os.File, but specified as an interface for easier testing.
type FileWriter interface {
	io.Writer
	io.WriterAt
}

// Slot is one entry of a hash table.  A zero Position marks an empty slot.
type Slot struct {
	Hash     uint32
	Position uint32
}

// Writer streams records, then hash tables, to a FileWriter, and finally
// fills in the header at the start of the file.
type Writer struct {
	f        FileWriter
	w        *bufio.Writer
	off      uint64
	count    uint64
	slotBuf  []byte
	finished atomic.Bool
}

func NewWriter(f FileWriter) (*Writer, error) {
	w := &Writer{
		f: f,
		w: bufio.NewWriterSize(f, defaultBufferSize),
	}

	// reserve space for the header; it is only known once the tables are written
	var headerBuf [HeaderSize]byte
	if n, err := w.w.Write(headerBuf[:]); err != nil {
		return nil, fmt.Errorf("bufio.Write: %w", err)
	} else {
		w.off = uint64(n)
	}

	// try to expose errors when writing to the backing file early
	if err := w.w.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	return w, nil
}

// AppendRecordHeader appends the 8-byte header of a record to dst.
func AppendRecordHeader(dst []byte, keyLen, valueLen uint32) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, keyLen)
	return binary.LittleEndian.AppendUint32(dst, valueLen)
}

// Write appends a record and returns the offset it starts at.
func (w *Writer) Write(key, value []byte) (off uint32, err error) {
	if w.finished.Load() {
		return 0, errors.New("Write called after Finish")
	}
	if w.off < HeaderSize {
		return 0, errors.New("invariant broken: always expect *Writer.off to be past the header")
	}
	if !fitsOffset(len(key)) || !fitsOffset(len(value)) {
		return 0, fmt.Errorf("%w: record with key length %d and value length %d", ErrTooLarge, len(key), len(value))
	}

	end := w.off + RecordHeaderSize + uint64(len(key)) + uint64(len(value))
	// leave room for every record's share of the hash tables, so that
	// Finish can't run out of addressable space
	if end+(w.count+1)*tableBytesPerRecord > MaxOffset {
		return 0, fmt.Errorf("%w: record %d at offset %d", ErrTooLarge, w.count, w.off)
	}

	var header [RecordHeaderSize]byte
	if _, err := w.w.Write(AppendRecordHeader(header[:0], uint32(len(key)), uint32(len(value)))); err != nil {
		return 0, fmt.Errorf("bufio.Write 1: %w", err)
	}
	if _, err := w.w.Write(key); err != nil {
		return 0, fmt.Errorf("bufio.Write 2: %w", err)
	}
	if _, err := w.w.Write(value); err != nil {
		return 0, fmt.Errorf("bufio.Write 3: %w", err)
	}

	off = uint32(w.off)
	w.off = end
	w.count++

	return off, nil
}

// Offset returns the position the next write will land at.
func (w *Writer) Offset() uint32 {
	return uint32(w.off)
}

// Len returns the number of records written so far.
func (w *Writer) Len() uint64 {
	return w.count
}

// WriteTable appends a hash table and returns its position.  An empty table
// writes nothing, and is positioned at the current offset.
func (w *Writer) WriteTable(slots []Slot) (pos uint32, err error) {
	if w.finished.Load() {
		return 0, errors.New("WriteTable called after Finish")
	}
	pos = uint32(w.off)
	if len(slots) == 0 {
		return pos, nil
	}
	if span(w.off, uint64(len(slots))*SlotSize) > MaxOffset {
		return 0, fmt.Errorf("%w: table of %d slots at offset %d", ErrTooLarge, len(slots), w.off)
	}

	buf := w.slotBuf[:0]
	for _, s := range slots {
		buf = binary.LittleEndian.AppendUint32(buf, s.Hash)
		buf = binary.LittleEndian.AppendUint32(buf, s.Position)
	}
	w.slotBuf = buf

	if _, err := w.w.Write(buf); err != nil {
		return 0, fmt.Errorf("bufio.Write: %w", err)
	}
	w.off += uint64(len(buf))

	return pos, nil
}

// Finish flushes buffered data and writes the header at the start of the file.
func (w *Writer) Finish(h *Header) error {
	if alreadyFinished := w.finished.Swap(true); alreadyFinished {
		// nothing to do - already cleaned up
		return nil
	}

	defer func() {
		w.w.Reset(nopWriter{})
		w.slotBuf = nil
	}()

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}

	if err := h.WriteAt(w.f); err != nil {
		return fmt.Errorf("Header.WriteAt: %w", err)
	}

	return nil
}
