// Package wire implements the core runtime's binary encoding primitives:
// fixed-endian scalars, the wire size encoding, sequences, dictionaries,
// encapsulations, and tagged optionals. It has no dependency on any other
// frost package, so it's reusable by any protocol built on top of the
// connection layer.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is a growable byte buffer with independent read and write cursors.
// Unlike bytes.Buffer, reads do not discard consumed bytes — this lets
// encapsulation bookkeeping seek backwards to back-patch a size field.
type Buffer struct {
	data  []byte
	rpos  int
	limit int // soft cap on Remaining(), used by encapsulation readers
}

// NewBuffer creates an empty, writable Buffer.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, 256), limit: -1}
}

// NewBufferFromBytes wraps an existing byte slice for reading. The slice is
// not copied; callers must not mutate it while the Buffer is in use.
func NewBufferFromBytes(b []byte) *Buffer {
	return &Buffer{data: b, limit: -1}
}

// Bytes returns the full underlying slice (everything written so far).
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the total number of bytes written.
func (b *Buffer) Len() int { return len(b.data) }

// Pos returns the current read cursor.
func (b *Buffer) Pos() int { return b.rpos }

// SetPos repositions the read cursor; used by pkg/valueser's class and
// exception decoders to rewind after peeking a type id.
func (b *Buffer) SetPos(pos int) { b.rpos = pos }

// Remaining returns the number of unread bytes, clamped to any active
// encapsulation limit.
func (b *Buffer) Remaining() int {
	end := len(b.data)
	if b.limit >= 0 && b.limit < end {
		end = b.limit
	}
	n := end - b.rpos
	if n < 0 {
		return 0
	}
	return n
}

func (b *Buffer) grow(n int) []byte {
	start := len(b.data)
	if cap(b.data)-start < n {
		newData := make([]byte, start, (start+n)*2)
		copy(newData, b.data)
		b.data = newData
	}
	b.data = b.data[:start+n]
	return b.data[start : start+n]
}

func (b *Buffer) requireBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("wire: negative read length %d", n)
	}
	if b.Remaining() < n {
		return nil, fmt.Errorf("wire: short buffer: need %d bytes, have %d", n, b.Remaining())
	}
	out := b.data[b.rpos : b.rpos+n]
	b.rpos += n
	return out, nil
}

// --- fixed-width scalars, little-endian ---

func (b *Buffer) WriteU8(v uint8) { b.grow(1)[0] = v }

func (b *Buffer) ReadU8() (uint8, error) {
	buf, err := b.requireBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *Buffer) WriteU16(v uint16) { binary.LittleEndian.PutUint16(b.grow(2), v) }

func (b *Buffer) ReadU16() (uint16, error) {
	buf, err := b.requireBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (b *Buffer) WriteU32(v uint32) { binary.LittleEndian.PutUint32(b.grow(4), v) }

func (b *Buffer) ReadU32() (uint32, error) {
	buf, err := b.requireBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (b *Buffer) WriteU64(v uint64) { binary.LittleEndian.PutUint64(b.grow(8), v) }

func (b *Buffer) ReadU64() (uint64, error) {
	buf, err := b.requireBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func (b *Buffer) WriteI8(v int8) { b.WriteU8(uint8(v)) }
func (b *Buffer) ReadI8() (int8, error) {
	v, err := b.ReadU8()
	return int8(v), err
}

func (b *Buffer) WriteI16(v int16) { b.WriteU16(uint16(v)) }
func (b *Buffer) ReadI16() (int16, error) {
	v, err := b.ReadU16()
	return int16(v), err
}

func (b *Buffer) WriteI32(v int32) { b.WriteU32(uint32(v)) }
func (b *Buffer) ReadI32() (int32, error) {
	v, err := b.ReadU32()
	return int32(v), err
}

func (b *Buffer) WriteI64(v int64) { b.WriteU64(uint64(v)) }
func (b *Buffer) ReadI64() (int64, error) {
	v, err := b.ReadU64()
	return int64(v), err
}

func (b *Buffer) WriteF32(v float32) { b.WriteU32(math.Float32bits(v)) }
func (b *Buffer) ReadF32() (float32, error) {
	v, err := b.ReadU32()
	return math.Float32frombits(v), err
}

func (b *Buffer) WriteF64(v float64) { b.WriteU64(math.Float64bits(v)) }
func (b *Buffer) ReadF64() (float64, error) {
	v, err := b.ReadU64()
	return math.Float64frombits(v), err
}

// WriteBool encodes a bool as one byte (0 or 1).
func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteU8(1)
	} else {
		b.WriteU8(0)
	}
}

func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// WriteRaw appends raw bytes without any length prefix.
func (b *Buffer) WriteRaw(p []byte) {
	copy(b.grow(len(p)), p)
}

// ReadRaw reads exactly n raw bytes without any length prefix.
func (b *Buffer) ReadRaw(n int) ([]byte, error) {
	return b.requireBytes(n)
}

// LimitTo temporarily narrows Remaining() to end (an absolute offset from
// the start of the buffer) and returns the previous limit, so a caller
// decoding a bounded region (an encapsulation, a class slice) can restore
// it afterwards with RestoreLimit. A negative end means "no limit".
func (b *Buffer) LimitTo(end int) int {
	prev := b.limit
	b.limit = end
	return prev
}

// RestoreLimit undoes a prior LimitTo.
func (b *Buffer) RestoreLimit(prev int) { b.limit = prev }

// SeekToLimit advances the read cursor to the current limit, skipping any
// unread bytes of the bounded region — used when a decoder recognizes a
// type's own members but not trailing ones another minor version added.
func (b *Buffer) SeekToLimit() {
	if b.limit >= 0 {
		b.rpos = b.limit
	}
}

// PatchI32 overwrites 4 already-written bytes at pos with v, little-endian.
// Used to back-patch a size placeholder once the true length is known.
func (b *Buffer) PatchI32(pos int, v int32) {
	putI32LE(b.data[pos:pos+4], v)
}

func putI32LE(dst []byte, v int32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
