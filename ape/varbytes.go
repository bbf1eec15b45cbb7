package ape

import "errors"

// MaxVarbytesLen is the largest payload a Varbytes can carry; the 12-bit
// length prefix cannot express anything larger.
const MaxVarbytesLen = 4095

// ErrVarbytesTooLong is returned when a Varbytes payload exceeds 4095 bytes.
var ErrVarbytesTooLong = errors.New("ape: varbytes length greater than 4095")

// EncodeVarbytes writes a 12-bit byte-length prefix followed by the data bits.
func EncodeVarbytes(w *Writer, data []byte) error {
	if len(data) > MaxVarbytesLen {
		return ErrVarbytesTooLong
	}
	_ = w.WriteBits(uint64(len(data)), 12)
	w.WriteBytes(data)
	return nil
}

// DecodeVarbytes reads a 12-bit length prefix and the payload it announces.
func DecodeVarbytes(r *Reader) ([]byte, error) {
	length, err := r.ReadBits(12)
	if err != nil {
		return nil, err
	}
	if length > MaxVarbytesLen {
		return nil, ErrVarbytesTooLong
	}
	if length == 0 {
		return []byte{}, nil
	}
	return r.ReadBytes(int(length))
}
