package client

import (
	"context"
	"log/slog"
	"net"
	"roomchat/domain"
	"roomchat/infrastructure/grpc/server"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func TestAdminClient_ListRooms(t *testing.T) {
	req := require.New(t)
	stats := []domain.RoomStats{
		{Room: domain.RoomDescriptor{ID: "general", Name: "General"}, Members: 3, Published: 42, Subscribers: 3},
		{Room: domain.RoomDescriptor{ID: "random", Name: "Random"}},
	}

	// Given an admin server on an in-memory listener
	listener := bufconn.Listen(1024 * 1024)
	srv := server.NewServer(logs.GetLoggerFromLevel(slog.LevelError), "",
		server.NewAdminServer(func() []domain.RoomStats { return stats }))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()
	defer func() {
		cancel()
		<-done
	}()

	c, err := NewAdminClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}))
	req.NoError(err)
	defer c.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()

	// Then the health check answers and rooms come back in order
	serving, err := c.Serving(callCtx)
	req.NoError(err)
	req.True(serving)

	rooms, err := c.ListRooms(callCtx)
	req.NoError(err)
	req.Equal(stats, rooms)
}
