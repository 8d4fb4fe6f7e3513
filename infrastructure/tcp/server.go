// Package tcp serves chat sessions over newline-delimited JSON on raw TCP.
package tcp

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"roomchat/protocol"
	"roomchat/session"
	"sync"
	"sync/atomic"
	"time"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

type Server struct {
	log      *slog.Logger
	address  string
	sessions *session.Factory
	opts     protocol.Options
	wg       sync.WaitGroup
	active   atomic.Int64
	addr     atomic.Value // net.Addr of the current listener
}

func NewServer(log *slog.Logger, address string, sessions *session.Factory, opts protocol.Options) *Server {
	return &Server{log: log, address: address, sessions: sessions, opts: opts}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener, one session each, and closes it when ctx is done.
// It waits for every session to end before returning.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.addr.Store(listener.Addr())
	s.log.Info("Starting TCP server", "address", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()
	defer s.wg.Wait()

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("TCP server stopped")
				return nil
			}
			if goerrors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed: %w", err)
			}
			// Out of file descriptors or similar: back off instead of spinning.
			delay = nextAcceptDelay(delay)
			s.log.Warn("Accept failed, retrying", "error", err, "delay", delay)
			select {
			case <-ctx.Done():
				s.log.Info("TCP server stopped")
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
}

// nextAcceptDelay doubles the previous delay, from minAcceptDelay up to maxAcceptDelay.
func nextAcceptDelay(previous time.Duration) time.Duration {
	if previous == 0 {
		return minAcceptDelay
	}
	return min(previous*2, maxAcceptDelay)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	s.active.Add(1)
	defer s.active.Add(-1)

	reader, writer := protocol.SplitServer(conn, s.opts)
	sess := s.sessions.New(reader, writer, conn)
	log := s.log.With("session_id", sess.ID(), "remote", conn.RemoteAddr().String())
	log.Debug("Connection accepted")

	if err := sess.Run(ctx); err != nil {
		log.Warn("Session ended with error", "error", err)
	}
}

// Addr returns the address of the current listener, nil before Serve.
func (s *Server) Addr() net.Addr {
	addr, _ := s.addr.Load().(net.Addr)
	return addr
}

// Connections returns the number of sessions being served.
func (s *Server) Connections() int64 {
	return s.active.Load()
}
