package ape

import "errors"

// Commons index widths. Whether a wrapped value draws from the short or the
// long table is a compile-time property of the element, never transmitted.
const (
	commonShortBits = 6
	commonLongBits  = 7
)

// ErrCommonIndexOutOfRange is returned when a decoded commons index does not
// map to a table entry.
var ErrCommonIndexOutOfRange = errors.New("ape: commons index out of range")

// commonShortValues is the shared dictionary for MaybeCommon short values:
// 64 round satoshi amounts and budgets seen in the overwhelming majority of
// entries. The table is part of the wire protocol and must never be reordered.
var commonShortValues = [1 << commonShortBits]uint32{
	100, 200, 250, 300, 400, 500, 600, 700,
	750, 800, 900, 1000, 1250, 1500, 1750, 2000,
	2500, 3000, 4000, 5000, 6000, 7000, 7500, 8000,
	9000, 10_000, 12_500, 15_000, 17_500, 20_000, 25_000, 30_000,
	40_000, 50_000, 60_000, 70_000, 75_000, 80_000, 90_000, 100_000,
	125_000, 150_000, 175_000, 200_000, 250_000, 300_000, 400_000, 500_000,
	600_000, 700_000, 750_000, 800_000, 900_000, 1_000_000, 1_250_000, 1_500_000,
	1_750_000, 2_000_000, 2_500_000, 3_000_000, 4_000_000, 5_000_000, 7_500_000, 10_000_000,
}

// commonLongValues extends the dictionary for long values: the short table
// plus larger round amounts up to 21M BTC in satoshis.
var commonLongValues = [1 << commonLongBits]uint64{
	100, 200, 250, 300, 400, 500, 600, 700,
	750, 800, 900, 1000, 1250, 1500, 1750, 2000,
	2500, 3000, 4000, 5000, 6000, 7000, 7500, 8000,
	9000, 10_000, 12_500, 15_000, 17_500, 20_000, 25_000, 30_000,
	40_000, 50_000, 60_000, 70_000, 75_000, 80_000, 90_000, 100_000,
	125_000, 150_000, 175_000, 200_000, 250_000, 300_000, 400_000, 500_000,
	600_000, 700_000, 750_000, 800_000, 900_000, 1_000_000, 1_250_000, 1_500_000,
	1_750_000, 2_000_000, 2_500_000, 3_000_000, 4_000_000, 5_000_000, 7_500_000, 10_000_000,
	12_500_000, 15_000_000, 17_500_000, 20_000_000, 25_000_000, 30_000_000, 40_000_000, 50_000_000,
	60_000_000, 70_000_000, 75_000_000, 80_000_000, 90_000_000, 100_000_000, 125_000_000, 150_000_000,
	175_000_000, 200_000_000, 250_000_000, 300_000_000, 400_000_000, 500_000_000, 600_000_000, 700_000_000,
	750_000_000, 800_000_000, 900_000_000, 1_000_000_000, 1_250_000_000, 1_500_000_000, 1_750_000_000, 2_000_000_000,
	2_500_000_000, 3_000_000_000, 4_000_000_000, 5_000_000_000, 6_000_000_000, 7_000_000_000, 7_500_000_000, 8_000_000_000,
	9_000_000_000, 10_000_000_000, 12_500_000_000, 15_000_000_000, 17_500_000_000, 20_000_000_000, 25_000_000_000, 30_000_000_000,
	40_000_000_000, 50_000_000_000, 60_000_000_000, 70_000_000_000, 75_000_000_000, 80_000_000_000, 90_000_000_000, 100_000_000_000,
	125_000_000_000, 150_000_000_000, 200_000_000_000, 250_000_000_000, 500_000_000_000, 1_000_000_000_000, 1_500_000_000_000, 2_100_000_000_000_000,
}

var (
	commonShortIndex = func() map[uint32]uint8 {
		m := make(map[uint32]uint8, len(commonShortValues))
		for i, v := range commonShortValues {
			m[v] = uint8(i)
		}
		return m
	}()
	commonLongIndex = func() map[uint64]uint8 {
		m := make(map[uint64]uint8, len(commonLongValues))
		for i, v := range commonLongValues {
			m[v] = uint8(i)
		}
		return m
	}()
)

// IsCommonShort reports whether v appears in the short commons table.
func IsCommonShort(v ShortVal) bool {
	_, ok := commonShortIndex[uint32(v)]
	return ok
}

// IsCommonLong reports whether v appears in the long commons table.
func IsCommonLong(v LongVal) bool {
	_, ok := commonLongIndex[uint64(v)]
	return ok
}

// EncodeMaybeCommonShort writes v as a 6-bit commons index when the value is
// in the short table, otherwise as an uncommon ShortVal. The commons form is
// mandatory for table values so that every encoding is canonical.
func EncodeMaybeCommonShort(w *Writer, v ShortVal) {
	if idx, ok := commonShortIndex[uint32(v)]; ok {
		w.WriteBool(true)
		_ = w.WriteBits(uint64(idx), commonShortBits)
		return
	}
	w.WriteBool(false)
	v.Encode(w)
}

// DecodeMaybeCommonShort reads a value written by EncodeMaybeCommonShort.
func DecodeMaybeCommonShort(r *Reader) (ShortVal, error) {
	isCommon, err := r.ReadBool()
	if err != nil {
		return 0, err
	}
	if isCommon {
		idx, err := r.ReadBits(commonShortBits)
		if err != nil {
			return 0, err
		}
		return ShortVal(commonShortValues[idx]), nil
	}
	return DecodeShortVal(r)
}

// EncodeMaybeCommonLong writes v as a 7-bit commons index when the value is
// in the long table, otherwise as an uncommon LongVal.
func EncodeMaybeCommonLong(w *Writer, v LongVal) {
	if idx, ok := commonLongIndex[uint64(v)]; ok {
		w.WriteBool(true)
		_ = w.WriteBits(uint64(idx), commonLongBits)
		return
	}
	w.WriteBool(false)
	v.Encode(w)
}

// DecodeMaybeCommonLong reads a value written by EncodeMaybeCommonLong.
func DecodeMaybeCommonLong(r *Reader) (LongVal, error) {
	isCommon, err := r.ReadBool()
	if err != nil {
		return 0, err
	}
	if isCommon {
		idx, err := r.ReadBits(commonLongBits)
		if err != nil {
			return 0, err
		}
		return LongVal(commonLongValues[idx]), nil
	}
	return DecodeLongVal(r)
}
