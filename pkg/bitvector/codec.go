package bitvector

import (
	"encoding/binary"
	"fmt"
)

// HeaderBytes is the size, in bytes, of the width prefix that precedes every
// serialized vector: an 8-byte little-endian word count.
const HeaderBytes = 8

// SerializedLength returns the number of bytes Encode will produce for a
// vector of the given width, so callers can pre-size buffers (§4.1).
func SerializedLength(width int) int {
	return HeaderBytes + width*8
}

// Encode writes v to a fresh byte slice: 8-byte little-endian width-in-words,
// then width*8 bytes of raw words, little-endian.
func Encode(v *Vector) []byte {
	width := v.Width()
	buf := make([]byte, SerializedLength(width))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(width))
	for i, w := range v.Words() {
		binary.LittleEndian.PutUint64(buf[HeaderBytes+i*8:HeaderBytes+i*8+8], w)
	}
	return buf
}

// Decode parses a vector encoded by Encode. It is the "hard case" avoider:
// the basic decode path used whenever no width expansion is needed.
func Decode(buf []byte) (*Vector, error) {
	if len(buf) < HeaderBytes {
		return nil, fmt.Errorf("bitvector: buffer too short for header: %d bytes", len(buf))
	}
	width := int(binary.LittleEndian.Uint64(buf[0:8]))
	want := SerializedLength(width)
	if len(buf) != want {
		return nil, fmt.Errorf("bitvector: mismatched serialized length: got %d want %d (width=%d)", len(buf), want, width)
	}
	v := NewWords(width)
	words := v.Words()
	for i := 0; i < width; i++ {
		words[i] = binary.LittleEndian.Uint64(buf[HeaderBytes+i*8 : HeaderBytes+i*8+8])
	}
	return v, nil
}

// ExpandingDecode implements the width-expanding deserialization of §4.1: it
// decodes a child's payload and places its bits into the contiguous slice
// [offset, offset+childWidth) of a freshly allocated vector of width
// totalWidth, leaving every other word zero. offset and childWidth are given
// explicitly rather than recomputed here, so the caller (the reduction
// filter, which knows the whole batch) controls the layout contract of §4.4
// step 1-2.
//
// childWidth must equal the width encoded in buf; offset+childWidth must not
// exceed totalWidth.
func ExpandingDecode(buf []byte, totalWidth, offset, childWidth int) (*Vector, error) {
	if len(buf) < HeaderBytes {
		return nil, fmt.Errorf("bitvector: buffer too short for header: %d bytes", len(buf))
	}
	encodedWidth := int(binary.LittleEndian.Uint64(buf[0:8]))
	if encodedWidth != childWidth {
		return nil, fmt.Errorf("bitvector: child width mismatch: payload says %d, caller says %d", encodedWidth, childWidth)
	}
	want := SerializedLength(childWidth)
	if len(buf) != want {
		return nil, fmt.Errorf("bitvector: mismatched serialized length: got %d want %d", len(buf), want)
	}
	if offset < 0 || offset+childWidth > totalWidth {
		return nil, fmt.Errorf("bitvector: child slice [%d,%d) does not fit in total width %d", offset, offset+childWidth, totalWidth)
	}

	out := NewWords(totalWidth)
	dst := out.Words()
	for i := 0; i < childWidth; i++ {
		dst[offset+i] = binary.LittleEndian.Uint64(buf[HeaderBytes+i*8 : HeaderBytes+i*8+8])
	}
	return out, nil
}
