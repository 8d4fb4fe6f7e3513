package client

import (
	"context"
	"roomchat/domain"
	"roomchat/infrastructure/grpc/admin"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type AdminClient struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// NewAdminClient connects lazily to target, without transport security.
func NewAdminClient(target string, opts ...grpc.DialOption) (*AdminClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &AdminClient{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

func (c *AdminClient) ListRooms(ctx context.Context) ([]domain.RoomStats, error) {
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, admin.ListRoomsMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return lo.Map(out.GetValues(), func(v *structpb.Value, _ int) domain.RoomStats {
		return admin.FromPbRoomStats(v)
	}), nil
}

// Serving reports whether the admin service answers its health check.
func (c *AdminClient) Serving(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: admin.ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func (c *AdminClient) Close() error {
	return c.conn.Close()
}
