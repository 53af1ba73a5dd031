// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package cdbtext reads and writes the text format cdbmake consumes and
// cdbdump produces: one line per record,
//
//	+klen,dlen:key->data
//
// with klen and dlen in decimal, followed by a single empty line.  Keys and
// values are arbitrary bytes, newlines included.
package cdbtext

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// ErrFormat is returned for input that isn't in cdbmake text format.
var ErrFormat = errors.New("cdbtext: bad format")

// Reader parses records from cdbmake text input.
type Reader struct {
	r          *bufio.Reader
	line       int
	keyBuf     bytes.Buffer
	valueBuf   bytes.Buffer
	key, value []byte
	err        error
	done       bool
}

// NewReader returns a Reader consuming r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next parses the next record, returning false after the terminating empty
// line or on error.  The slices returned by Key and Value are only valid
// until the next call to Next.
func (r *Reader) Next() bool {
	if r.err != nil || r.done {
		return false
	}
	r.line++

	c, err := r.r.ReadByte()
	if err != nil {
		r.fail(err)
		return false
	}
	switch c {
	case '\n':
		r.done = true
		return false
	case '+':
	default:
		r.err = fmt.Errorf("%w: line %d: expected '+' or end of input, got %q", ErrFormat, r.line, c)
		return false
	}

	keyLen, err := r.readLength(',')
	if err != nil {
		r.fail(err)
		return false
	}
	valueLen, err := r.readLength(':')
	if err != nil {
		r.fail(err)
		return false
	}

	if r.key, err = r.readN(&r.keyBuf, keyLen); err != nil {
		r.fail(err)
		return false
	}
	if err := r.expect("->"); err != nil {
		r.fail(err)
		return false
	}
	if r.value, err = r.readN(&r.valueBuf, valueLen); err != nil {
		r.fail(err)
		return false
	}
	if err := r.expect("\n"); err != nil {
		r.fail(err)
		return false
	}
	return true
}

func (r *Reader) fail(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: line %d: unexpected end of input", ErrFormat, r.line)
	}
	r.err = err
}

// readLength reads a decimal length terminated by sep.
func (r *Reader) readLength(sep byte) (int, error) {
	var n uint64
	digits := 0
	for {
		c, err := r.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if c == sep && digits > 0 {
			return int(n), nil
		}
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: line %d: bad length byte %q", ErrFormat, r.line, c)
		}
		n = n*10 + uint64(c-'0')
		digits++
		if n > math.MaxUint32 {
			return 0, fmt.Errorf("%w: line %d: length too large", ErrFormat, r.line)
		}
	}
}

// readN reads exactly n bytes into buf.  buf grows as data arrives, so a
// bogus length can't force a huge allocation up front.
func (r *Reader) readN(buf *bytes.Buffer, n int) ([]byte, error) {
	buf.Reset()
	if _, err := io.CopyN(buf, r.r, int64(n)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Reader) expect(s string) error {
	for i := 0; i < len(s); i++ {
		c, err := r.r.ReadByte()
		if err != nil {
			return err
		}
		if c != s[i] {
			return fmt.Errorf("%w: line %d: expected %q, got %q", ErrFormat, r.line, s[i], c)
		}
	}
	return nil
}

// Key returns the key of the current record.
func (r *Reader) Key() []byte {
	return r.key
}

// Value returns the value of the current record.
func (r *Reader) Value() []byte {
	return r.value
}

// Err returns the first error encountered, including input that ends before
// the terminating empty line.
func (r *Reader) Err() error {
	return r.err
}

// Writer formats records as cdbmake text.
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write formats one record.
func (w *Writer) Write(key, value []byte) error {
	b := append(w.buf[:0], '+')
	b = strconv.AppendInt(b, int64(len(key)), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(len(value)), 10)
	b = append(b, ':')
	w.buf = b
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if _, err := w.w.Write(key); err != nil {
		return err
	}
	if _, err := w.w.WriteString("->"); err != nil {
		return err
	}
	if _, err := w.w.Write(value); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close writes the terminating empty line and flushes.  It doesn't close the
// underlying writer.
func (w *Writer) Close() error {
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}
