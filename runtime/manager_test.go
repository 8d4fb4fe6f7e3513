package runtime

import (
	"context"
	goerrors "errors"
	"log/slog"
	"roomchat/broadcast"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"roomchat/mocks"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newManager(t *testing.T, capacity int) *RoomManager {
	t.Helper()
	registry, err := NewRegistry(rooms())
	require.NoError(t, err)
	return NewRoomManager(logs.GetLoggerFromLevel(slog.LevelError), registry, capacity, nil)
}

func recv(t *testing.T, r *broadcast.Receiver[event.Event]) event.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, err := r.Recv(ctx)
	require.NoError(t, err)
	return e
}

func TestRoomManager_Join_Counts_Member(t *testing.T) {
	req := require.New(t)
	manager := newManager(t, 8)
	sessionID := uuid.New()

	// When a session joins general
	handle, receiver, err := manager.Join(sessionID, "general")
	req.NoError(err)
	req.NotNil(receiver)

	// Then the handle belongs to the session and the room counts it
	req.Equal(sessionID, handle.SessionID())
	req.Equal(domain.RoomID("general"), handle.Room())
	members, err := manager.Members("general")
	req.NoError(err)
	req.EqualValues(1, members)

	// When it leaves
	manager.Leave(handle)

	// Then the counter is back to zero
	members, _ = manager.Members("general")
	req.EqualValues(0, members)
}

func TestRoomManager_Join_Unknown_Room_Mutates_Nothing(t *testing.T) {
	req := require.New(t)
	manager := newManager(t, 8)

	handle, receiver, err := manager.Join(uuid.New(), "nowhere")
	req.ErrorIs(err, errors.ErrUnknownRoom)
	req.Nil(handle)
	req.Nil(receiver)

	for _, stats := range manager.Stats() {
		req.EqualValues(0, stats.Members)
		req.Equal(0, stats.Subscribers)
	}
}

func TestRoomManager_Double_Leave_Is_NoOp(t *testing.T) {
	req := require.New(t)
	manager := newManager(t, 8)

	first, _, err := manager.Join(uuid.New(), "random")
	req.NoError(err)
	_, _, err = manager.Join(uuid.New(), "random")
	req.NoError(err)

	// When the same handle is given back twice
	manager.Leave(first)
	manager.Leave(first)

	// Then only one membership is removed
	members, _ := manager.Members("random")
	req.EqualValues(1, members)
}

func TestRoomManager_Leave_Foreign_Handle_Is_Ignored(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	manager := newManager(t, 8)
	_, _, err := manager.Join(uuid.New(), "general")
	req.NoError(err)

	// Given a handle forged outside the manager
	forged := mocks.NewMockRoomHandle(ctrl)

	manager.Leave(forged)
	manager.Leave(nil)

	members, _ := manager.Members("general")
	req.EqualValues(1, members)
}

func TestRoomManager_Concurrent_Join_Leave_Keeps_Counters(t *testing.T) {
	req := require.New(t)
	manager := newManager(t, 8)
	const sessions = 200

	// When many sessions join and leave concurrently, half of them staying
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle, _, err := manager.Join(uuid.New(), "golang")
			if err != nil {
				t.Error(err)
				return
			}
			if i%2 == 0 {
				manager.Leave(handle)
			}
		}(i)
	}
	wg.Wait()

	// Then the counter equals the outstanding handles
	members, _ := manager.Members("golang")
	req.EqualValues(sessions/2, members)
	stats := manager.Stats()
	req.Equal(sessions/2, stats[2].Subscribers)
}

func TestRoomManager_Publish_Reaches_Every_Member_Once(t *testing.T) {
	req := require.New(t)
	manager := newManager(t, 8)
	_, alice, err := manager.Join(uuid.New(), "general")
	req.NoError(err)
	_, bob, err := manager.Join(uuid.New(), "general")
	req.NoError(err)
	_, outsider, err := manager.Join(uuid.New(), "random")
	req.NoError(err)

	msg := event.RoomMessage{ID: uuid.New(), Room: "general", Sender: "alice", Content: "hi"}
	req.NoError(manager.Publish("general", msg))

	req.Equal(msg, recv(t, alice))
	req.Equal(msg, recv(t, bob))
	req.EqualValues(0, alice.Pending())
	req.EqualValues(0, outsider.Pending())
}

func TestRoomManager_Publish_Unknown_Room(t *testing.T) {
	req := require.New(t)
	manager := newManager(t, 8)
	err := manager.Publish("nowhere", event.RoomMessage{Room: "nowhere"})
	req.ErrorIs(err, errors.ErrUnknownRoom)
}

func TestRoomManager_Slow_Member_Lags_Without_Blocking(t *testing.T) {
	req := require.New(t)
	manager := newManager(t, 4)
	_, slow, err := manager.Join(uuid.New(), "general")
	req.NoError(err)

	// When more messages are published than the ring retains
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_ = manager.Publish("general", event.RoomMessage{Room: "general", Content: "m"})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("publish blocked on a slow member")
	}

	// Then the slow member is told how many it missed
	_, err = slow.Recv(context.Background())
	var lag *broadcast.LagError
	req.True(goerrors.As(err, &lag))
	req.EqualValues(6, lag.Missed)
	req.NotNil(recv(t, slow))
}

func TestRoomManager_Stats_And_Close(t *testing.T) {
	req := require.New(t)
	manager := newManager(t, 8)
	_, receiver, err := manager.Join(uuid.New(), "random")
	req.NoError(err)
	req.NoError(manager.Publish("random", event.RoomMessage{Room: "random"}))

	stats := manager.Stats()
	req.Len(stats, 3)
	req.Equal(domain.RoomID("general"), stats[0].Room.ID)
	req.EqualValues(1, stats[1].Members)
	req.EqualValues(1, stats[1].Published)

	// When the manager is closed
	manager.Close()

	// Then publishing fails and receivers drain then stop
	req.ErrorIs(manager.Publish("random", event.RoomMessage{Room: "random"}), errors.ErrClosed)
	_ = recv(t, receiver)
	_, err = receiver.Recv(context.Background())
	req.ErrorIs(err, errors.ErrClosed)
}

func TestRoomManager_Reports_Membership_Changes_As_Deltas(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	metrics := mocks.NewMockIMetrics(ctrl)
	registry, err := NewRegistry(rooms())
	req.NoError(err)
	manager := NewRoomManager(logs.GetLoggerFromLevel(slog.LevelError), registry, 8, metrics)

	// Given one join and one leave, the second leave being a duplicate
	gomock.InOrder(
		metrics.EXPECT().RoomMembersDelta(domain.RoomID("general"), int64(1)),
		metrics.EXPECT().RoomMembersDelta(domain.RoomID("general"), int64(-1)),
	)
	handle, _, err := manager.Join(uuid.New(), "general")
	req.NoError(err)
	manager.Leave(handle)
	manager.Leave(handle)

	// Then only one +1 and one -1 reached the gauge
	members, err := manager.Members("general")
	req.NoError(err)
	req.Zero(members)
}
