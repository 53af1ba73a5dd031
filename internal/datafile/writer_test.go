// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"encoding/binary"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (s *safeBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]byte(nil), s.buf...)
}

func (s *safeBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *safeBuffer) WriteAt(p []byte, off int64) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(off)+len(p) > len(s.buf) {
		return 0, errors.New("writeAt out of bounds")
	}

	return copy(s.buf[off:int(off)+len(p)], p), nil
}

var _ FileWriter = &safeBuffer{}

type testWriter struct {
	inner              FileWriter
	writeShouldError   bool
	writeAtShouldError bool
}

func (c *testWriter) Write(p []byte) (n int, err error) {
	if c.writeShouldError {
		return 0, errors.New("write failed")
	}
	return c.inner.Write(p)
}

func (c *testWriter) WriteAt(p []byte, off int64) (n int, err error) {
	if c.writeAtShouldError {
		return 0, errors.New("write failed")
	}
	return c.inner.WriteAt(p, off)
}

var _ FileWriter = &testWriter{}

func TestNewWriter_Errors(t *testing.T) {
	var fileBytes safeBuffer
	writer := &testWriter{
		inner:            &fileBytes,
		writeShouldError: true,
	}

	_, err := NewWriter(writer)
	assert.Error(t, err)
}

func TestAppendRecordHeader(t *testing.T) {
	hdr := AppendRecordHeader([]byte{0xaa}, 3, 6)
	expected := []byte{
		0xaa,
		3, 0, 0, 0,
		6, 0, 0, 0,
	}
	assert.Equal(t, expected, hdr)

	keyLen, valueLen := DecodeRecordHeader(hdr[1:])
	assert.Equal(t, uint32(3), keyLen)
	assert.Equal(t, uint32(6), valueLen)

	// empty keys and values are legal
	assert.Equal(t, make([]byte, RecordHeaderSize), AppendRecordHeader(nil, 0, 0))
}

func TestWriter_Offsets(t *testing.T) {
	var fileBytes safeBuffer

	w, err := NewWriter(&fileBytes)
	require.NoError(t, err)
	require.Equal(t, uint32(HeaderSize), w.Offset())
	// the header placeholder is flushed eagerly
	require.Len(t, fileBytes.Bytes(), HeaderSize)

	off, err := w.Write([]byte("k"), []byte("v"))
	require.NoError(t, err)
	assert.Equal(t, uint32(HeaderSize), off)

	off, err = w.Write(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(HeaderSize+RecordHeaderSize+2), off)

	off, err = w.Write([]byte("key"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(HeaderSize+2*RecordHeaderSize+2), off)
	assert.Equal(t, uint64(3), w.Len())
}

func TestWriter_TooBigErrors(t *testing.T) {
	var fileBytes safeBuffer

	w, err := NewWriter(&fileBytes)
	require.NoError(t, err)

	origOff := w.off

	// a record that would leave no room for the hash tables
	w.off = MaxOffset - RecordHeaderSize - 2
	_, err = w.Write([]byte("k"), []byte("v"))
	assert.ErrorIs(t, err, ErrTooLarge)

	w.off = MaxOffset - RecordHeaderSize - 2 - tableBytesPerRecord
	_, err = w.Write([]byte("k"), []byte("v"))
	assert.NoError(t, err)

	w.off = 0
	_, err = w.Write([]byte("k"), []byte("v"))
	assert.Error(t, err)

	w.off = origOff
}

func TestWriter_Finish(t *testing.T) {
	var fileBytes safeBuffer

	w, err := NewWriter(&fileBytes)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		k := []byte(strconv.FormatInt(int64(i), 10))
		v := make([]byte, i%17)
		for j := 0; j < len(v); j++ {
			v[j] = byte(i % 256)
		}
		_, err := w.Write(k, v)
		require.NoError(t, err)
	}

	slots := []Slot{{Hash: 0xdeadbeef, Position: HeaderSize}, {}}
	recordsEnd := w.Offset()
	pos, err := w.WriteTable(slots)
	require.NoError(t, err)
	require.Equal(t, recordsEnd, pos)

	// empty tables take no space
	emptyPos, err := w.WriteTable(nil)
	require.NoError(t, err)
	require.Equal(t, recordsEnd+2*SlotSize, emptyPos)

	var h Header
	for i := range h {
		h[i].Position = emptyPos
	}
	h[0] = TableInfo{Position: pos, Slots: uint32(len(slots))}

	err = w.Finish(&h)
	require.NoError(t, err)
	// multiple finishes should be fine
	err = w.Finish(&h)
	require.NoError(t, err)

	_, err = w.Write([]byte("k"), []byte("v"))
	assert.Error(t, err)
	_, err = w.WriteTable(slots)
	assert.Error(t, err)

	contents := fileBytes.Bytes()
	require.Equal(t, int(emptyPos), len(contents))

	var h2 Header
	require.NoError(t, h2.UnmarshalBytes(contents, int64(len(contents))))
	assert.Equal(t, h, h2)
	assert.Equal(t, recordsEnd, h2.RecordsEnd())

	assert.Equal(t, uint32(0xdeadbeef), binary.LittleEndian.Uint32(contents[pos:]))
	assert.Equal(t, uint32(HeaderSize), binary.LittleEndian.Uint32(contents[pos+4:]))
	assert.Equal(t, Slot{}, DecodeSlot(contents[pos+SlotSize:]))
}

func TestWriter_FinishHeaderError(t *testing.T) {
	var fileBytes safeBuffer
	tw := &testWriter{inner: &fileBytes}

	w, err := NewWriter(tw)
	require.NoError(t, err)
	_, err = w.Write([]byte("k"), []byte("v"))
	require.NoError(t, err)

	tw.writeAtShouldError = true
	var h Header
	assert.Error(t, w.Finish(&h))
}
