package ape

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarbytesRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 2, 100, 4095} {
		data := bytes.Repeat([]byte{0x5A}, n)
		w := NewWriter()
		require.NoError(t, EncodeVarbytes(w, data))
		require.Equal(t, 12+8*n, w.BitLen())

		r := NewReader(w.Bytes())
		got, err := DecodeVarbytes(r)
		require.NoError(t, err)
		require.Equal(t, data, got)
	}
}

func TestVarbytesThreeBytePayload(t *testing.T) {
	w := NewWriter()
	require.NoError(t, EncodeVarbytes(w, []byte{0xAA, 0xBB, 0xCC}))
	// 12-bit length 0x003 followed by 24 payload bits.
	require.Equal(t, 36, w.BitLen())
	require.Equal(t, []byte{0x00, 0x3A, 0xAB, 0xBC, 0xC0}, w.Bytes())

	r := NewReader(w.Bytes())
	got, err := DecodeVarbytes(r)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, got)
}

func TestVarbytesTooLong(t *testing.T) {
	w := NewWriter()
	err := EncodeVarbytes(w, make([]byte, 4096))
	require.ErrorIs(t, err, ErrVarbytesTooLong)
}

func TestVarbytesTruncatedPayload(t *testing.T) {
	w := NewWriter()
	_ = w.WriteBits(10, 12) // announce ten bytes, supply none
	r := NewReader(w.Bytes())
	_, err := DecodeVarbytes(r)
	require.ErrorIs(t, err, ErrEndOfStream)
}
