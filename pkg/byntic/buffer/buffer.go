// Package buffer implements the byte cursor every codec reads from and writes
// to.
//
// A Buffer is owned by exactly one encode or decode call. Writes append to the
// end of the span; reads advance an index over it and never copy or reslice
// the underlying bytes, so decoding a payload is linear in its size.
//
// Variable-length integers use unsigned LEB128. The largest encodable value is
// 2^64-1, which takes MaxVarintLen bytes; longer or larger sequences are
// rejected with ErrVarintOverflow.
package buffer

import (
	"encoding/binary"
	"fmt"
	"math"

	bynerr "github.com/byntic/byntic-go/internal/errors"
)

// MaxVarintLen is the longest LEB128 sequence accepted for a 64-bit value.
const MaxVarintLen = binary.MaxVarintLen64

// Buffer is a byte span with a forward-only read cursor and an append-only
// write side.
type Buffer struct {
	data []byte
	off  int // read cursor
}

// New wraps data for reading. The slice is not copied.
func New(data []byte) *Buffer {
	return &Buffer{data: data}
}

// NewWriter returns an empty Buffer with room for sizeHint bytes.
func NewWriter(sizeHint int) *Buffer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Buffer{data: make([]byte, 0, sizeHint)}
}

// Bytes returns every byte written to or wrapped by the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the total number of bytes in the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Offset returns the position of the read cursor.
func (b *Buffer) Offset() int {
	return b.off
}

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.off
}

// Exhausted reports whether every byte has been read.
func (b *Buffer) Exhausted() bool {
	return b.off >= len(b.data)
}

func (b *Buffer) underrun(want int) error {
	return fmt.Errorf("%w: need %d bytes at offset %d, %d remaining", bynerr.ErrBufferUnderrun, want, b.off, b.Remaining())
}

// next advances the cursor by n bytes and returns them.
func (b *Buffer) next(n int) ([]byte, error) {
	if n < 0 || n > b.Remaining() {
		return nil, b.underrun(n)
	}
	p := b.data[b.off : b.off+n : b.off+n]
	b.off += n
	return p, nil
}

// --- writes ---

// WriteBytes appends p verbatim.
func (b *Buffer) WriteBytes(p []byte) {
	b.data = append(b.data, p...)
}

// WriteVarint appends u as unsigned LEB128.
func (b *Buffer) WriteVarint(u uint64) {
	b.data = binary.AppendUvarint(b.data, u)
}

// WriteUint8 appends a single byte.
func (b *Buffer) WriteUint8(v uint8) {
	b.data = append(b.data, v)
}

// WriteInt8 appends a two's-complement byte.
func (b *Buffer) WriteInt8(v int8) {
	b.data = append(b.data, byte(v))
}

// WriteUint16 appends v little-endian.
func (b *Buffer) WriteUint16(v uint16) {
	b.data = binary.LittleEndian.AppendUint16(b.data, v)
}

// WriteInt16 appends v little-endian.
func (b *Buffer) WriteInt16(v int16) {
	b.data = binary.LittleEndian.AppendUint16(b.data, uint16(v))
}

// WriteUint32 appends v little-endian.
func (b *Buffer) WriteUint32(v uint32) {
	b.data = binary.LittleEndian.AppendUint32(b.data, v)
}

// WriteInt32 appends v little-endian.
func (b *Buffer) WriteInt32(v int32) {
	b.data = binary.LittleEndian.AppendUint32(b.data, uint32(v))
}

// WriteUint64 appends v little-endian.
func (b *Buffer) WriteUint64(v uint64) {
	b.data = binary.LittleEndian.AppendUint64(b.data, v)
}

// WriteInt64 appends v little-endian.
func (b *Buffer) WriteInt64(v int64) {
	b.data = binary.LittleEndian.AppendUint64(b.data, uint64(v))
}

// WriteFloat32 appends the IEEE-754 bits of v little-endian.
func (b *Buffer) WriteFloat32(v float32) {
	b.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 appends the IEEE-754 bits of v little-endian.
func (b *Buffer) WriteFloat64(v float64) {
	b.WriteUint64(math.Float64bits(v))
}

// --- reads ---

// ReadBytes consumes exactly n bytes. The returned slice aliases the buffer.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	return b.next(n)
}

// ReadVarint consumes one unsigned LEB128 value.
func (b *Buffer) ReadVarint() (uint64, error) {
	v, n := binary.Uvarint(b.data[b.off:])
	switch {
	case n == 0:
		return 0, fmt.Errorf("%w: unterminated varint at offset %d", bynerr.ErrBufferUnderrun, b.off)
	case n < 0:
		return 0, fmt.Errorf("%w: at offset %d", bynerr.ErrVarintOverflow, b.off)
	}
	b.off += n
	return v, nil
}

// ReadUint8 consumes one byte.
func (b *Buffer) ReadUint8() (uint8, error) {
	if b.off >= len(b.data) {
		return 0, b.underrun(1)
	}
	v := b.data[b.off]
	b.off++
	return v, nil
}

// ReadInt8 consumes one two's-complement byte.
func (b *Buffer) ReadInt8() (int8, error) {
	v, err := b.ReadUint8()
	return int8(v), err
}

// ReadUint16 consumes a little-endian uint16.
func (b *Buffer) ReadUint16() (uint16, error) {
	p, err := b.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

// ReadInt16 consumes a little-endian int16.
func (b *Buffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

// ReadUint32 consumes a little-endian uint32.
func (b *Buffer) ReadUint32() (uint32, error) {
	p, err := b.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// ReadInt32 consumes a little-endian int32.
func (b *Buffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

// ReadUint64 consumes a little-endian uint64.
func (b *Buffer) ReadUint64() (uint64, error) {
	p, err := b.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

// ReadInt64 consumes a little-endian int64.
func (b *Buffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

// ReadFloat32 consumes an IEEE-754 single.
func (b *Buffer) ReadFloat32() (float32, error) {
	bits, err := b.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// ReadFloat64 consumes an IEEE-754 double.
func (b *Buffer) ReadFloat64() (float64, error) {
	bits, err := b.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}
