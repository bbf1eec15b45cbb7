package ape

import (
	"errors"
	"math/bits"
)

// ErrAtomicOutOfRange is returned when an atomic value is not below its upper bound.
var ErrAtomicOutOfRange = errors.New("ape: atomic value not below upper bound")

// ShortVal is an unsigned value of at most 32 bits, wire-encoded as
// 2 tier bits followed by 1..4 value bytes. The encoder always picks the
// smallest tier that fits, so the encoding of any value is unique.
type ShortVal uint32

// Tier returns the number of effective value bytes (1..4).
func (v ShortVal) Tier() int {
	switch {
	case v <= 0xFF:
		return 1
	case v <= 0xFFFF:
		return 2
	case v <= 0xFFFFFF:
		return 3
	default:
		return 4
	}
}

// Encode writes the tier bits and the big-endian value bytes.
func (v ShortVal) Encode(w *Writer) {
	tier := v.Tier()
	_ = w.WriteBits(uint64(tier-1), 2)
	_ = w.WriteBits(uint64(v), tier*8)
}

// DecodeShortVal reads a ShortVal from the stream.
func DecodeShortVal(r *Reader) (ShortVal, error) {
	tier, err := r.ReadBits(2)
	if err != nil {
		return 0, err
	}
	v, err := r.ReadBits(int(tier+1) * 8)
	if err != nil {
		return 0, err
	}
	return ShortVal(v), nil
}

// LongVal is an unsigned value of at most 64 bits, wire-encoded as
// 3 tier bits followed by 1..8 value bytes, smallest tier canonical.
type LongVal uint64

// Tier returns the number of effective value bytes (1..8).
func (v LongVal) Tier() int {
	n := (bits.Len64(uint64(v)) + 7) / 8
	if n == 0 {
		n = 1
	}
	return n
}

// Encode writes the tier bits and the big-endian value bytes.
func (v LongVal) Encode(w *Writer) {
	tier := v.Tier()
	_ = w.WriteBits(uint64(tier-1), 3)
	_ = w.WriteBits(uint64(v), tier*8)
}

// DecodeLongVal reads a LongVal from the stream.
func DecodeLongVal(r *Reader) (LongVal, error) {
	tier, err := r.ReadBits(3)
	if err != nil {
		return 0, err
	}
	v, err := r.ReadBits(int(tier+1) * 8)
	if err != nil {
		return 0, err
	}
	return LongVal(v), nil
}

// AtomicBitSize returns the number of bits needed to represent any value
// strictly below upperBound. An upper bound of zero or one needs no bits.
func AtomicBitSize(upperBound uint8) int {
	if upperBound <= 1 {
		return 0
	}
	return bits.Len8(upperBound - 1)
}

// EncodeAtomic writes value in exactly AtomicBitSize(upperBound) bits.
// The value must be strictly below upperBound.
func EncodeAtomic(w *Writer, value, upperBound uint8) error {
	if upperBound > 0 && value >= upperBound {
		return ErrAtomicOutOfRange
	}
	return w.WriteBits(uint64(value), AtomicBitSize(upperBound))
}

// DecodeAtomic reads a value known to be below upperBound.
func DecodeAtomic(r *Reader, upperBound uint8) (uint8, error) {
	v, err := r.ReadBits(AtomicBitSize(upperBound))
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

// EncodeU8 writes a fixed-width 8-bit value.
func EncodeU8(w *Writer, v uint8) {
	_ = w.WriteBits(uint64(v), 8)
}

// DecodeU8 reads a fixed-width 8-bit value.
func DecodeU8(r *Reader) (uint8, error) {
	v, err := r.ReadBits(8)
	return uint8(v), err
}

// EncodeU16 writes a fixed-width big-endian 16-bit value.
func EncodeU16(w *Writer, v uint16) {
	_ = w.WriteBits(uint64(v), 16)
}

// DecodeU16 reads a fixed-width big-endian 16-bit value.
func DecodeU16(r *Reader) (uint16, error) {
	v, err := r.ReadBits(16)
	return uint16(v), err
}
