package ape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaybeCommonShortCommonForm(t *testing.T) {
	// 1000 sat is a table value: one is-common bit plus a 6-bit index.
	w := NewWriter()
	EncodeMaybeCommonShort(w, 1000)
	require.Equal(t, 7, w.BitLen())

	r := NewReader(w.Bytes())
	got, err := DecodeMaybeCommonShort(r)
	require.NoError(t, err)
	require.Equal(t, ShortVal(1000), got)
}

func TestMaybeCommonShortUncommonForm(t *testing.T) {
	w := NewWriter()
	EncodeMaybeCommonShort(w, 999)
	// 1 branch bit + 2 tier bits + 16 value bits.
	require.Equal(t, 19, w.BitLen())

	r := NewReader(w.Bytes())
	got, err := DecodeMaybeCommonShort(r)
	require.NoError(t, err)
	require.Equal(t, ShortVal(999), got)
}

func TestMaybeCommonLongRoundTrip(t *testing.T) {
	for _, v := range []LongVal{1, 999, 100_000_000, 2_100_000_000_000_000, 0xDEADBEEFCAFE} {
		w := NewWriter()
		EncodeMaybeCommonLong(w, v)
		r := NewReader(w.Bytes())
		got, err := DecodeMaybeCommonLong(r)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestCommonsTablesHaveNoDuplicates(t *testing.T) {
	require.Len(t, commonShortIndex, len(commonShortValues))
	require.Len(t, commonLongIndex, len(commonLongValues))
}

func TestMaybeCommonEncodingIsCanonical(t *testing.T) {
	// A table value must always take the commons branch.
	w := NewWriter()
	EncodeMaybeCommonShort(w, 100)
	r := NewReader(w.Bytes())
	isCommon, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, isCommon)
}
