package p2p

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// PingTimeout bounds one ping round trip.
const PingTimeout = 3 * time.Second

// Client is one outbound peer connection.
type Client struct {
	log  *slog.Logger
	conn net.Conn
}

// Dial connects to a peer.
func Dial(ctx context.Context, addr string, log *slog.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConn, err)
	}
	return &Client{
		log:  log.With("component", "p2p_client", "peer", addr),
		conn: conn,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ping sends a liveness probe and returns the measured round trip time.
// The peer has PingTimeout to answer with a pong.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	deadline := time.Now().Add(PingTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConn, err)
	}
	defer c.conn.SetDeadline(time.Time{})

	start := time.Now()
	err := WritePacket(c.conn, Packet{
		Kind:      KindPing,
		Timestamp: start.Unix(),
		Payload:   []byte{PingPayloadByte},
	})
	if err != nil {
		return 0, err
	}

	response, err := ReadPacket(c.conn)
	if err != nil {
		return 0, err
	}
	rtt := time.Since(start)

	if response.Kind != KindPing {
		return 0, fmt.Errorf("%w: kind 0x%02x", ErrInvalidResponse, byte(response.Kind))
	}
	if len(response.Payload) == 0 {
		return 0, ErrEmptyResponse
	}
	if !bytes.Equal(response.Payload, []byte{PongPayloadByte}) {
		return 0, fmt.Errorf("%w: payload %x", ErrInvalidResponse, response.Payload)
	}

	c.log.Debug("ping", "rtt", rtt)
	return rtt, nil
}
