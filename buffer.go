package natgen

import (
	"bytes"
	"encoding/binary"
)

// CodeBuffer is the append-only machine-code buffer backing code emission.
// Bytes are appended at the write cursor; a position returned
// by Pos may later be patched in place via WriteU16/WriteU32/WriteU64, but
// never beyond the width given at patch time.
//
// Grounded on the teacher's BufferWrapper (emit.go): Write/Write2/Write4/
// Write8 append little-endian fixed-width values; here the random-access
// counterparts close the loop for deferred patching.
type CodeBuffer struct {
	buf bytes.Buffer
}

// Pos returns the current append cursor, i.e. the offset the next Append*
// call will write to.
func (b *CodeBuffer) Pos() int { return b.buf.Len() }

// Len returns the number of bytes written so far.
func (b *CodeBuffer) Len() int { return b.buf.Len() }

// Bytes returns the buffer's contents. The caller must not mutate the slice;
// use WriteU* for in-place patches.
func (b *CodeBuffer) Bytes() []byte { return b.buf.Bytes() }

// AppendByte appends a single byte and returns its offset.
func (b *CodeBuffer) AppendByte(v byte) int {
	pos := b.Pos()
	b.buf.WriteByte(v)
	return pos
}

// AppendBytes appends a raw byte slice and returns the offset it starts at.
func (b *CodeBuffer) AppendBytes(v []byte) int {
	pos := b.Pos()
	b.buf.Write(v)
	return pos
}

// AppendU16 appends a little-endian 16-bit word.
func (b *CodeBuffer) AppendU16(v uint16) int {
	pos := b.Pos()
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf.Write(tmp[:])
	return pos
}

// AppendU32 appends a little-endian 32-bit word.
func (b *CodeBuffer) AppendU32(v uint32) int {
	pos := b.Pos()
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
	return pos
}

// AppendU64 appends a little-endian 64-bit word.
func (b *CodeBuffer) AppendU64(v uint64) int {
	pos := b.Pos()
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf.Write(tmp[:])
	return pos
}

// AppendZeros appends n zero bytes, useful for reserving a patch site.
func (b *CodeBuffer) AppendZeros(n int) int {
	pos := b.Pos()
	for i := 0; i < n; i++ {
		b.buf.WriteByte(0)
	}
	return pos
}

// AppendFixedString appends s NUL-padded (or truncated) to exactly width
// bytes, as used for container header name fields.
func (b *CodeBuffer) AppendFixedString(s string, width int) int {
	pos := b.Pos()
	data := make([]byte, width)
	copy(data, s)
	b.buf.Write(data)
	return pos
}

// ReadU32 reads a little-endian 32-bit word at offset without mutating it.
func (b *CodeBuffer) ReadU32(offset int) uint32 {
	return binary.LittleEndian.Uint32(b.buf.Bytes()[offset : offset+4])
}

// WriteU16 patches a little-endian 16-bit word at offset. offset must have
// been returned earlier by an Append* call or be otherwise known to lie
// within the buffer; out-of-range patches are a programmer error and panic.
func (b *CodeBuffer) WriteU16(offset int, v uint16) {
	raw := b.buf.Bytes()
	binary.LittleEndian.PutUint16(raw[offset:offset+2], v)
}

// WriteU32 patches a little-endian 32-bit word at offset.
func (b *CodeBuffer) WriteU32(offset int, v uint32) {
	raw := b.buf.Bytes()
	binary.LittleEndian.PutUint32(raw[offset:offset+4], v)
}

// WriteU64 patches a little-endian 64-bit word at offset.
func (b *CodeBuffer) WriteU64(offset int, v uint64) {
	raw := b.buf.Bytes()
	binary.LittleEndian.PutUint64(raw[offset:offset+8], v)
}

// WriteByte patches a single byte at offset.
func (b *CodeBuffer) WriteByteAt(offset int, v byte) {
	b.buf.Bytes()[offset] = v
}

// WriteI32 patches a signed 32-bit displacement at offset.
func (b *CodeBuffer) WriteI32(offset int, v int32) {
	b.WriteU32(offset, uint32(v))
}
