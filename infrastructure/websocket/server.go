// Package websocket serves chat sessions to browsers, one JSON frame per text message.
package websocket

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"roomchat/protocol"
	"roomchat/session"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const (
	DefaultPingInterval = 30 * time.Second
	shutdownTimeout     = 5 * time.Second
)

type Server struct {
	log          *slog.Logger
	address      string
	sessions     *session.Factory
	opts         protocol.Options
	pingInterval time.Duration
	upgrader     websocket.Upgrader

	// mu orders admissions against shutdown so wg.Add never races wg.Wait.
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

func NewServer(log *slog.Logger, address string, sessions *session.Factory, opts protocol.Options, pingInterval time.Duration) *Server {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &Server{
		log:          log,
		address:      address,
		sessions:     sessions,
		opts:         opts,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router exposes GET /ws.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/ws", s.serveWS)
	return r
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	s.draining = false
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting WebSocket server", "address", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		return fmt.Errorf("websocket server error: %w", err)
	}

	// Hijacked connections are not tracked by Shutdown: sessions end through ctx.
	// No upgrade is admitted once draining is set.
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.wg.Wait()
	s.log.Info("WebSocket server stopped")
	return err
}

// admit registers a new session unless the server is shutting down.
func (s *Server) admit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if !s.admit() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	reader, writer := protocol.NewWebsocketServerConn(conn, s.opts)
	sess := s.sessions.New(reader, writer, conn)
	log := s.log.With("session_id", sess.ID(), "remote", r.RemoteAddr)
	log.Debug("WebSocket connection accepted")

	go s.keepAlive(ctx, conn)

	if err := sess.Run(ctx); err != nil {
		log.Warn("Session ended with error", "error", err)
	}
}

// keepAlive pings the peer so that idle timeouts only hit dead connections.
func (s *Server) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.pingInterval / 2)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
