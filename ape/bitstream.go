// Package ape implements Airly Payload Encoding, the self-delimiting
// variable-width bit codec used to serialize rollup entries for on-chain
// inscription. All lengths are carried inline; byte alignment is only
// guaranteed at the outer boundary.
package ape

import "errors"

var (
	// ErrEndOfStream is returned when a read runs past the end of the bit stream.
	ErrEndOfStream = errors.New("ape: unexpected end of bit stream")
	// ErrValueTooWide is returned when a value does not fit the requested bit width.
	ErrValueTooWide = errors.New("ape: value exceeds declared bit width")
)

// Writer accumulates bits most-significant first.
type Writer struct {
	buf    []byte
	bitLen int
}

// NewWriter returns an empty bit writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteBool appends a single bit.
func (w *Writer) WriteBool(b bool) {
	if w.bitLen%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if b {
		w.buf[w.bitLen/8] |= 0x80 >> uint(w.bitLen%8)
	}
	w.bitLen++
}

// WriteBits appends the low n bits of v, most-significant first.
func (w *Writer) WriteBits(v uint64, n int) error {
	if n < 0 || n > 64 {
		return ErrValueTooWide
	}
	if n < 64 && v>>uint(n) != 0 {
		return ErrValueTooWide
	}
	for i := n - 1; i >= 0; i-- {
		w.WriteBool(v>>uint(i)&1 == 1)
	}
	return nil
}

// WriteBytes appends data as 8*len(data) bits.
func (w *Writer) WriteBytes(data []byte) {
	for _, b := range data {
		// Fast path when the cursor is byte aligned.
		if w.bitLen%8 == 0 {
			w.buf = append(w.buf, b)
			w.bitLen += 8
			continue
		}
		for i := 7; i >= 0; i-- {
			w.WriteBool(b>>uint(i)&1 == 1)
		}
	}
}

// BitLen returns the number of bits written so far.
func (w *Writer) BitLen() int {
	return w.bitLen
}

// Bytes returns the written bits padded with zero bits to a byte boundary.
func (w *Writer) Bytes() []byte {
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out
}

// Reader consumes bits most-significant first.
type Reader struct {
	buf    []byte
	cursor int
	bitLen int
}

// NewReader returns a reader over all bits of data.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data, bitLen: len(data) * 8}
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int {
	return r.bitLen - r.cursor
}

// ReadBool consumes a single bit.
func (r *Reader) ReadBool() (bool, error) {
	if r.cursor >= r.bitLen {
		return false, ErrEndOfStream
	}
	b := r.buf[r.cursor/8]&(0x80>>uint(r.cursor%8)) != 0
	r.cursor++
	return b, nil
}

// ReadBits consumes n bits and returns them as an unsigned value,
// most-significant first.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, ErrValueTooWide
	}
	if r.Remaining() < n {
		return 0, ErrEndOfStream
	}
	var v uint64
	for i := 0; i < n; i++ {
		bit, err := r.ReadBool()
		if err != nil {
			return 0, err
		}
		v <<= 1
		if bit {
			v |= 1
		}
	}
	return v, nil
}

// ReadBytes consumes 8*n bits and returns them as bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if r.Remaining() < n*8 {
		return nil, ErrEndOfStream
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}
