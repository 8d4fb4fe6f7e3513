package runtime_test

import (
	"context"
	"fmt"
	"log/slog"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"roomchat/mocks"
	"roomchat/observability"
	"roomchat/runtime"
	"roomchat/runtime/workers"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func descriptors() []domain.RoomDescriptor {
	return []domain.RoomDescriptor{
		{ID: "general", Name: "General"},
		{ID: "random", Name: "Random"},
	}
}

func TestOrchestrator_Boots_Rooms_From_Source(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	source := mocks.NewMockRoomSource(ctrl)
	source.EXPECT().LoadRooms(gomock.Any()).Return(descriptors(), nil)

	o, err := runtime.NewOrchestrator(context.Background(), log, workers.NewSupervisor(log, 0),
		source, observability.NewMetrics(), runtime.Options{EnableModeration: true, CharReplacement: '*'})
	req.NoError(err)

	req.Equal(descriptors(), o.Registry().List())
	req.Len(o.Manager().Stats(), 2)
	req.NotNil(o.Sessions())
}

func TestOrchestrator_Bootstrap_Failures(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelError)

	tests := []struct {
		name  string
		rooms []domain.RoomDescriptor
		err   error
		want  error
	}{
		{name: "source error", err: fmt.Errorf("disk gone"), want: nil},
		{name: "no rooms", rooms: nil, want: errors.ErrEmptyRooms},
		{name: "duplicate", rooms: []domain.RoomDescriptor{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}}, want: errors.ErrDuplicateRoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			source := mocks.NewMockRoomSource(ctrl)
			source.EXPECT().LoadRooms(gomock.Any()).Return(tt.rooms, tt.err)

			_, err := runtime.NewOrchestrator(context.Background(), log, workers.NewSupervisor(log, 0),
				source, nil, runtime.Options{})
			req.Error(err)
			if tt.want != nil {
				req.ErrorIs(err, tt.want)
			}
		})
	}
}

func TestOrchestrator_Start_Stop(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	source := mocks.NewMockRoomSource(ctrl)
	source.EXPECT().LoadRooms(gomock.Any()).Return(descriptors(), nil)

	o, err := runtime.NewOrchestrator(context.Background(), log, workers.NewSupervisor(log, 0),
		source, observability.NewMetrics(), runtime.Options{MetricInterval: 10 * time.Millisecond})
	req.NoError(err)

	// Given a transport worker
	worker := mocks.NewMockWorker(ctrl)
	worker.EXPECT().Run(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	o.Add(worker)

	_, receiver, err := o.Manager().Join(uuid.New(), "general")
	req.NoError(err)

	done := make(chan struct{})
	go func() {
		o.Start(context.Background())
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)

	// When the orchestrator stops
	o.Stop()

	// Then workers end and room channels are closed
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("orchestrator did not stop")
	}
	req.ErrorIs(o.Manager().Publish("general", event.RoomLeft{Room: "general"}), errors.ErrClosed)
	_, err = receiver.Recv(context.Background())
	req.ErrorIs(err, errors.ErrClosed)
}
