// Copyright 2019 Featix Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package binary provides the fixed-width big-endian primitives shared by
// all index writers and readers.
package binary

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// MaxStringLength is the longest string that can be stored with a single
// length byte.  Longer strings are silently truncated by PutString.
const MaxStringLength = 255

// ErrUnexpectedEnd is returned when a Reader runs out of input before the
// requested value is complete.
var ErrUnexpectedEnd = errors.New("unexpected end of data")

// Writer appends big-endian primitives to a growable buffer.  The zero value
// is ready for use.
type Writer struct {
	buf []byte
}

// Len returns the number of bytes written so far.  Callers use it to record
// offsets before and after writing a record.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the accumulated buffer.  The slice is only valid until the
// next Put call.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reset discards the accumulated buffer, retaining its capacity.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// PutUint8 appends a single byte.
func (w *Writer) PutUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// PutUint32 appends a 32-bit value.
func (w *Writer) PutUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// PutUint64 appends a 64-bit value.
func (w *Writer) PutUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

// PutFloat32 appends a 32-bit float in IEEE 754 representation.
func (w *Writer) PutFloat32(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// PutString appends a length-prefixed string.  Strings longer than
// MaxStringLength are truncated to that length.
func (w *Writer) PutString(s string) {
	if len(s) > MaxStringLength {
		s = s[:MaxStringLength]
	}
	w.PutUint8(uint8(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteTo writes the accumulated buffer to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	n, err := dst.Write(w.buf)
	return int64(n), err
}

// Reader decodes values previously written by a Writer.  Reading past the
// end of the buffer returns ErrUnexpectedEnd.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader decoding from buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the number of undecoded bytes remaining.
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Len() < n {
		return nil, ErrUnexpectedEnd
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Uint8 decodes a single byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32 decodes a 32-bit value.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint64 decodes a 64-bit value.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Float32 decodes a 32-bit float.
func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// String decodes a length-prefixed string.
func (r *Reader) String() (string, error) {
	n, err := r.Uint8()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Read reads a big-endian value from r into v using binary.Read.
func Read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.BigEndian, v)
}

// Write writes a big-endian encoding of v to w using binary.Write.
func Write(w io.Writer, v interface{}) error {
	return binary.Write(w, binary.BigEndian, v)
}
