// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// Reader gives random access to the parts of a finished cdb file.
type Reader interface {
	Header() *Header
	Size() int64
	// ReadSlot returns slot i of the hash table at tablePos.
	ReadSlot(tablePos, i uint32) (Slot, error)
	// ReadRecordHeader returns the key and value lengths of the record at
	// off, after checking the whole record lies within the file.
	ReadRecordHeader(off uint32) (keyLen, valueLen uint32, err error)
	// ReadBytes returns n bytes starting at off.
	ReadBytes(off, n uint32) ([]byte, error)
	Close() error
}

// DecodeRecordHeader decodes the key and value lengths at the start of buf.
func DecodeRecordHeader(buf []byte) (keyLen, valueLen uint32) {
	// bounds check elimination
	_ = buf[RecordHeaderSize-1]
	keyLen = binary.LittleEndian.Uint32(buf[:4])
	valueLen = binary.LittleEndian.Uint32(buf[4:8])
	return
}

// DecodeSlot decodes a hash table slot at the start of buf.
func DecodeSlot(buf []byte) Slot {
	_ = buf[SlotSize-1]
	return Slot{
		Hash:     binary.LittleEndian.Uint32(buf[:4]),
		Position: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

func checkRecord(off uint32, keyLen, valueLen uint32, size int64) error {
	if end := span(off, uint32(RecordHeaderSize)) + uint64(keyLen) + uint64(valueLen); end > uint64(size) {
		return fmt.Errorf("%w: off %d + keyLen %d + valueLen %d beyond bounds (%d)", ErrCorruptRecord, off, keyLen, valueLen, size)
	}
	return nil
}

// MmapReader reads a cdb file mapped into memory.  Slices it returns alias
// the mapping, and are only valid until Close.
type MmapReader struct {
	h        Header
	data     []byte
	isClosed atomic.Bool
}

// NewMmapReader maps size bytes of f into memory.  f may be closed once this
// returns.
func NewMmapReader(f *os.File, size int64) (*MmapReader, error) {
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: data file too short: %d < %d", ErrCorruptHeader, size, HeaderSize)
	}
	if !fitsOffset(size - 1) {
		return nil, fmt.Errorf("%w: data file too large: %d", ErrCorruptHeader, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap(%s): %w", ErrIO, f.Name(), err)
	}

	r := &MmapReader{data: data}
	if err := r.h.UnmarshalBytes(data, size); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("Header.UnmarshalBytes: %w", err)
	}

	return r, nil
}

// Advise tells the kernel lookups will be random, so it doesn't waste
// effort on readahead.
func (r *MmapReader) Advise() error {
	if err := unix.Madvise(r.data, syscall.MADV_RANDOM); err != nil {
		return fmt.Errorf("madvise: %w", err)
	}
	return nil
}

func (r *MmapReader) Header() *Header {
	return &r.h
}

func (r *MmapReader) Size() int64 {
	return int64(len(r.data))
}

func (r *MmapReader) ReadSlot(tablePos, i uint32) (Slot, error) {
	if r.isClosed.Load() {
		return Slot{}, ErrClosed
	}
	off := span(tablePos, uint64(i)*SlotSize)
	if off+SlotSize > uint64(len(r.data)) {
		return Slot{}, fmt.Errorf("%w: slot at %d beyond bounds (%d)", ErrCorruptHeader, off, len(r.data))
	}
	return DecodeSlot(r.data[off : off+SlotSize]), nil
}

func (r *MmapReader) ReadRecordHeader(off uint32) (keyLen, valueLen uint32, err error) {
	if r.isClosed.Load() {
		return 0, 0, ErrClosed
	}
	m := r.data
	end := span(off, uint32(RecordHeaderSize))
	if end > uint64(len(m)) {
		return 0, 0, fmt.Errorf("%w: off %d beyond bounds (%d)", ErrCorruptRecord, off, len(m))
	}
	keyLen, valueLen = DecodeRecordHeader(m[off:end])
	if err := checkRecord(off, keyLen, valueLen, int64(len(m))); err != nil {
		return 0, 0, err
	}
	return keyLen, valueLen, nil
}

func (r *MmapReader) ReadBytes(off, n uint32) ([]byte, error) {
	if r.isClosed.Load() {
		return nil, ErrClosed
	}
	end := span(off, n)
	if end > uint64(len(r.data)) {
		return nil, fmt.Errorf("%w: [%d, %d) beyond bounds (%d)", ErrCorruptRecord, off, end, len(r.data))
	}
	return r.data[off:end:end], nil
}

func (r *MmapReader) Close() error {
	if r.isClosed.Swap(true) {
		return nil
	}
	data := r.data
	r.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("%w: munmap: %w", ErrIO, err)
	}
	return nil
}

// FileReader reads a cdb file with positioned reads, allocating a fresh
// slice for every result.
type FileReader struct {
	h        Header
	r        io.ReaderAt
	size     int64
	isClosed atomic.Bool
}

// NewFileReader reads the header of the size-byte cdb file behind r.  If r
// is an io.Closer, Close closes it.
func NewFileReader(r io.ReaderAt, size int64) (*FileReader, error) {
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: data file too short: %d < %d", ErrCorruptHeader, size, HeaderSize)
	}
	if !fitsOffset(size - 1) {
		return nil, fmt.Errorf("%w: data file too large: %d", ErrCorruptHeader, size)
	}

	data := make([]byte, HeaderSize)
	if _, err := r.ReadAt(data, 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: short header read: %w", ErrCorruptHeader, err)
		}
		return nil, fmt.Errorf("%w: ReadAt: %w", ErrIO, err)
	}

	fr := &FileReader{
		r:    r,
		size: size,
	}
	if err := fr.h.UnmarshalBytes(data, size); err != nil {
		return nil, fmt.Errorf("Header.UnmarshalBytes: %w", err)
	}

	return fr, nil
}

func (r *FileReader) Header() *Header {
	return &r.h
}

func (r *FileReader) Size() int64 {
	return r.size
}

func (r *FileReader) readFull(buf []byte, off uint64) error {
	if r.isClosed.Load() {
		return ErrClosed
	}
	if off+uint64(len(buf)) > uint64(r.size) {
		return fmt.Errorf("%w: [%d, %d) beyond bounds (%d)", ErrCorruptRecord, off, off+uint64(len(buf)), r.size)
	}
	n, err := r.r.ReadAt(buf, int64(off))
	if n == len(buf) {
		// ReaderAt may return io.EOF alongside a complete read at the end of the file
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: ReadAt(%d, len: %d): %w", ErrIO, off, len(buf), err)
}

func (r *FileReader) ReadSlot(tablePos, i uint32) (Slot, error) {
	var buf [SlotSize]byte
	if err := r.readFull(buf[:], span(tablePos, uint64(i)*SlotSize)); err != nil {
		return Slot{}, err
	}
	return DecodeSlot(buf[:]), nil
}

func (r *FileReader) ReadRecordHeader(off uint32) (keyLen, valueLen uint32, err error) {
	var buf [RecordHeaderSize]byte
	if err := r.readFull(buf[:], uint64(off)); err != nil {
		return 0, 0, err
	}
	keyLen, valueLen = DecodeRecordHeader(buf[:])
	if err := checkRecord(off, keyLen, valueLen, r.size); err != nil {
		return 0, 0, err
	}
	return keyLen, valueLen, nil
}

func (r *FileReader) ReadBytes(off, n uint32) ([]byte, error) {
	if span(off, n) > uint64(r.size) {
		return nil, fmt.Errorf("%w: [%d, %d) beyond bounds (%d)", ErrCorruptRecord, off, span(off, n), r.size)
	}
	buf := make([]byte, n)
	if err := r.readFull(buf, uint64(off)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *FileReader) Close() error {
	if r.isClosed.Swap(true) {
		return nil
	}
	if c, ok := r.r.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("%w: Close: %w", ErrIO, err)
		}
	}
	return nil
}

var (
	_ Reader = &MmapReader{}
	_ Reader = &FileReader{}
)
