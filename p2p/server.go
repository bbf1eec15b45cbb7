package p2p

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// IdleTimeout disconnects peers that stay silent.
	IdleTimeout = 60 * time.Second
	// WriteTimeout bounds one response write.
	WriteTimeout = 10 * time.Second

	acceptRate  = rate.Limit(32)
	acceptBurst = 64
)

// Server answers liveness probes from peers.
type Server struct {
	log     *slog.Logger
	limiter *rate.Limiter

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer returns a server ready to run an accept loop.
func NewServer(log *slog.Logger) *Server {
	return &Server{
		log:     log.With("component", "p2p_server"),
		limiter: rate.NewLimiter(acceptRate, acceptBurst),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections until the context is cancelled or the
// listener fails. Each connection is handled on its own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	go func() {
		<-ctx.Done()
		ln.Close()
		s.closeAll()
	}()

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("%w: accept: %v", ErrConn, err)
		}
		s.track(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrack(conn)
	log := s.log.With("peer", conn.RemoteAddr().String())
	log.Debug("peer connected")

	for {
		if err := conn.SetReadDeadline(time.Now().Add(IdleTimeout)); err != nil {
			return
		}
		request, err := ReadPacket(conn)
		if err != nil {
			log.Debug("peer disconnected", "err", err)
			return
		}
		response, err := s.handlePacket(request)
		if err != nil {
			log.Debug("dropping peer", "err", err)
			return
		}
		if err := conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
			return
		}
		if err := WritePacket(conn, response); err != nil {
			log.Debug("write failed", "err", err)
			return
		}
	}
}

// handlePacket maps one request to its response. A pong echoes the
// ping's timestamp so the peer can measure skew.
func (s *Server) handlePacket(request Packet) (Packet, error) {
	switch request.Kind {
	case KindPing:
		if len(request.Payload) != 1 || request.Payload[0] != PingPayloadByte {
			return Packet{}, fmt.Errorf("%w: ping payload %x", ErrInvalidRequest, request.Payload)
		}
		return Packet{
			Kind:      KindPing,
			Timestamp: request.Timestamp,
			Payload:   []byte{PongPayloadByte},
		}, nil
	default:
		return Packet{}, fmt.Errorf("%w: kind 0x%02x", ErrInvalidRequest, byte(request.Kind))
	}
}
