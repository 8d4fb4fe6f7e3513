package internal

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"roomchat/domain"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DebugServer exposes the admin HTTP endpoints: health, prometheus metrics
// and a JSON snapshot of the rooms.
type DebugServer struct {
	log             *slog.Logger
	address         string
	metrics         http.Handler
	stats           func() []domain.RoomStats
	shutdownTimeout time.Duration
}

func NewDebugServer(log *slog.Logger, address string, metrics http.Handler,
	stats func() []domain.RoomStats, shutdownTimeout time.Duration) *DebugServer {
	return &DebugServer{
		log:             log,
		address:         address,
		metrics:         metrics,
		stats:           stats,
		shutdownTimeout: shutdownTimeout,
	}
}

func (d *DebugServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", d.metrics)
	r.Get("/rooms", d.rooms)
	return r
}

func (d *DebugServer) rooms(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.stats()); err != nil {
		d.log.Error("Unable to encode rooms", "error", err)
	}
}

func (d *DebugServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", d.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.address, err)
	}
	return d.Serve(ctx, listener)
}

func (d *DebugServer) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           d.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		d.log.Info("Admin HTTP server listening", "address", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), d.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("admin HTTP server error: %w", err)
	}
}
