package p2p

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = NewServer(slog.Default()).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func TestPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sent := Packet{Kind: KindPing, Timestamp: 1726000000, Payload: []byte{0xaa, 0xbb}}
	require.NoError(t, WritePacket(&buf, sent))

	got, err := ReadPacket(&buf)
	require.NoError(t, err)
	require.Equal(t, sent, got)
}

func TestReadPacketRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(KindPing))
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})

	_, err := ReadPacket(&buf)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestPingPong(t *testing.T) {
	addr := startTestServer(t)

	client, err := Dial(context.Background(), addr, slog.Default())
	require.NoError(t, err)
	defer client.Close()

	rtt, err := client.Ping(context.Background())
	require.NoError(t, err)
	require.Greater(t, rtt, time.Duration(0))
	require.Less(t, rtt, PingTimeout)

	// The connection stays usable for repeated probes.
	_, err = client.Ping(context.Background())
	require.NoError(t, err)
}

func TestServerDropsMalformedPing(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, WritePacket(conn, Packet{
		Kind:      KindPing,
		Timestamp: time.Now().Unix(),
		Payload:   []byte{PongPayloadByte},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = ReadPacket(conn)
	require.Error(t, err)
}

func TestPongEchoesTimestamp(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	sentAt := int64(1726001234)
	require.NoError(t, WritePacket(conn, Packet{
		Kind:      KindPing,
		Timestamp: sentAt,
		Payload:   []byte{PingPayloadByte},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	response, err := ReadPacket(conn)
	require.NoError(t, err)
	require.Equal(t, KindPing, response.Kind)
	require.Equal(t, sentAt, response.Timestamp)
	require.Equal(t, []byte{PongPayloadByte}, response.Payload)
}

func TestPingInvalidResponse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		request, err := ReadPacket(conn)
		if err != nil {
			return
		}
		_ = WritePacket(conn, Packet{
			Kind:      request.Kind,
			Timestamp: request.Timestamp,
			Payload:   []byte{0x7f},
		})
	}()

	client, err := Dial(context.Background(), ln.Addr().String(), slog.Default())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Ping(context.Background())
	require.ErrorIs(t, err, ErrInvalidResponse)
}
