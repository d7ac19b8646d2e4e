// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// byteOrder abstracts binary.LittleEndian/binary.BigEndian so a reader can
// switch endianness mid-stream, which every serialized file in this format
// does right after its endianness byte.
type byteOrder = binary.ByteOrder

// reader is an endian-aware cursor over a seekable byte source. It is the
// Go analogue of saferwall/pe's offset-taking ReadUint32/structUnpack
// helpers, generalized into a stateful reader because this format -
// unlike PE - switches endianness and alignment rules mid-stream.
type reader struct {
	src   io.ReadSeeker
	order byteOrder
}

// newReader wraps src. Archives and serialized files start out big-endian
// per spec §4.1.
func newReader(src io.ReadSeeker) *reader {
	return &reader{src: src, order: binary.BigEndian}
}

// newReaderBytes wraps an in-memory buffer.
func newReaderBytes(b []byte) *reader {
	return newReader(bytes.NewReader(b))
}

// setLittleEndian switches the reader to little-endian for every
// subsequent primitive read. Serialized files call this after reading
// their endianness byte when it is zero.
func (r *reader) setLittleEndian() { r.order = binary.LittleEndian }

// setBigEndian restores big-endian mode.
func (r *reader) setBigEndian() { r.order = binary.BigEndian }

func (r *reader) tell() (int64, error) {
	return r.src.Seek(0, io.SeekCurrent)
}

// whence mirrors io.Seeker's constants for callers outside this package
// that only import unitykit, not io.
const (
	SeekStart   = io.SeekStart
	SeekCurrent = io.SeekCurrent
	SeekEnd     = io.SeekEnd
)

func (r *reader) seek(offset int64, whence int) (int64, error) {
	return r.src.Seek(offset, whence)
}

func (r *reader) read(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.src, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return buf, nil
}

func (r *reader) readU8() (uint8, error) {
	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readI8() (int8, error) {
	v, err := r.readU8()
	return int8(v), err
}

func (r *reader) readBool() (bool, error) {
	v, err := r.readU8()
	return v != 0, err
}

func (r *reader) readU16() (uint16, error) {
	b, err := r.read(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *reader) readI16() (int16, error) {
	v, err := r.readU16()
	return int16(v), err
}

func (r *reader) readU32() (uint32, error) {
	b, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *reader) readI32() (int32, error) {
	v, err := r.readU32()
	return int32(v), err
}

func (r *reader) readU64() (uint64, error) {
	b, err := r.read(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *reader) readI64() (int64, error) {
	v, err := r.readU64()
	return int64(v), err
}

func (r *reader) readF32() (float32, error) {
	v, err := r.readU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// readCString reads bytes until a NUL terminator. Hitting EOF first is a
// framing violation per spec §4.1.
func (r *reader) readCString() (string, error) {
	var buf []byte
	for {
		b, err := r.readU8()
		if err != nil {
			return "", fmt.Errorf("read cstring: %w", ErrTruncated)
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

// readFixedString reads exactly n bytes. A Go string is just a byte
// sequence, so this never fails on non-UTF-8 content the way a strict
// decode would - Unity occasionally stores non-UTF-8 data in nominally
// string fields, and callers that need validation can check themselves
// (spec §4.1: lossy recovery rather than a hard failure).
func (r *reader) readFixedString(n int) (string, error) {
	b, err := r.read(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// alignTo4 advances the cursor to the next multiple of 4.
func (r *reader) alignTo4() error {
	pos, err := r.tell()
	if err != nil {
		return err
	}
	rem := pos % 4
	if rem == 0 {
		return nil
	}
	_, err = r.read(int(4 - rem))
	return err
}
