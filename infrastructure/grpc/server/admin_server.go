package server

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"roomchat/domain"
	"roomchat/infrastructure/grpc/admin"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type AdminServer struct {
	stats func() []domain.RoomStats
}

func NewAdminServer(stats func() []domain.RoomStats) *AdminServer {
	return &AdminServer{stats: stats}
}

// ListRooms returns one struct per room, in bootstrap order.
func (s *AdminServer) ListRooms(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return &structpb.ListValue{Values: lo.Map(s.stats(), func(item domain.RoomStats, _ int) *structpb.Value {
		return admin.ToPbRoomStats(item)
	})}, nil
}

// Server is the supervised gRPC listener exposing health and administration.
type Server struct {
	log     *slog.Logger
	address string
	admin   *AdminServer
}

func NewServer(log *slog.Logger, address string, admin *AdminServer) *Server {
	return &Server{log: log, address: address, admin: admin}
}

func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(s.log)))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthServer)
	admin.RegisterAdminServiceServer(gs, s.admin)
	healthServer.SetServingStatus(admin.ServiceName, healthpb.HealthCheckResponse_SERVING)

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting gRPC admin server", "address", listener.Addr().String())
		for serviceName := range gs.GetServiceInfo() {
			s.log.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := gs.Serve(listener); err != nil && !goerrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		healthServer.Shutdown()
		gs.GracefulStop()
		s.log.Info("gRPC admin server stopped")
		return nil
	case err := <-errChan:
		gs.Stop()
		return err
	}
}
