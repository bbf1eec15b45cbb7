// Package p2p implements the peer wire protocol: length-prefixed packets
// of a kind byte, a big-endian unix timestamp and an opaque payload.
package p2p

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Kind discriminates packet types on the wire.
type Kind uint8

const (
	// KindPing requests a liveness response. The ping payload is 0x00;
	// the response reuses the kind with payload 0x01.
	KindPing Kind = 0x00
)

// Payload bytes of the ping exchange.
const (
	PingPayloadByte = 0x00
	PongPayloadByte = 0x01
)

// MaxPayloadLength bounds a single packet payload.
const MaxPayloadLength = 1 << 20

var (
	ErrConn            = errors.New("p2p: connection failed")
	ErrInvalidRequest  = errors.New("p2p: invalid request")
	ErrInvalidResponse = errors.New("p2p: invalid response")
	ErrEmptyResponse   = errors.New("p2p: empty response")
	ErrErrorResponse   = errors.New("p2p: peer reported an error")
	ErrPayloadTooLarge = errors.New("p2p: payload exceeds limit")
)

// Packet is one framed message.
type Packet struct {
	Kind      Kind
	Timestamp int64
	Payload   []byte
}

// WritePacket frames and writes a packet.
func WritePacket(w io.Writer, p Packet) error {
	if len(p.Payload) > MaxPayloadLength {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(p.Payload))
	}
	buf := make([]byte, 0, 1+8+4+len(p.Payload))
	buf = append(buf, byte(p.Kind))
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.Timestamp))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(p.Payload)))
	buf = append(buf, p.Payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrConn, err)
	}
	return nil
}

// ReadPacket reads and unframes one packet.
func ReadPacket(r io.Reader) (Packet, error) {
	var header [13]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrConn, err)
	}

	p := Packet{
		Kind:      Kind(header[0]),
		Timestamp: int64(binary.BigEndian.Uint64(header[1:9])),
	}
	length := binary.BigEndian.Uint32(header[9:13])
	if length > MaxPayloadLength {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, length)
	}
	if length > 0 {
		p.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, p.Payload); err != nil {
			return Packet{}, fmt.Errorf("%w: %v", ErrConn, err)
		}
	}
	return p, nil
}
