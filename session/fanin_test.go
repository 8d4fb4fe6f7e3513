package session

import (
	"context"
	"log/slog"
	"roomchat/broadcast"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestFanIn(t *testing.T) *FanIn {
	t.Helper()
	f := NewFanIn(logs.GetLoggerFromLevel(slog.LevelError), 8, nil)
	t.Cleanup(f.Close)
	return f
}

func next(t *testing.T, f *FanIn) event.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, err := f.Next(ctx)
	require.NoError(t, err)
	return e
}

func message(room domain.RoomID, content string) event.RoomMessage {
	return event.RoomMessage{Room: room, Content: content}
}

func TestFanIn_Empty_Blocks_Until_Context_Done(t *testing.T) {
	req := require.New(t)
	f := newTestFanIn(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.Next(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestFanIn_Keeps_Per_Room_Order(t *testing.T) {
	req := require.New(t)
	f := newTestFanIn(t)
	general := broadcast.New[event.Event](16)
	random := broadcast.New[event.Event](16)
	req.NoError(f.Add("general", general.Subscribe()))
	req.NoError(f.Add("random", random.Subscribe()))

	for i := 0; i < 5; i++ {
		_, _ = general.Publish(message("general", string(rune('a'+i))))
		_, _ = random.Publish(message("random", string(rune('a'+i))))
	}

	// Rooms interleave freely but each one keeps its publish order
	seen := map[domain.RoomID]string{}
	for i := 0; i < 10; i++ {
		msg := next(t, f).(event.RoomMessage)
		seen[msg.Room] += msg.Content
	}
	req.Equal("abcde", seen["general"])
	req.Equal("abcde", seen["random"])
	req.Equal([]domain.RoomID{"general", "random"}, f.Rooms())
}

func TestFanIn_Add_Twice_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newTestFanIn(t)
	ch := broadcast.New[event.Event](4)
	req.NoError(f.Add("general", ch.Subscribe()))
	req.ErrorIs(f.Add("general", ch.Subscribe()), errors.ErrAlreadyJoined)
	req.Equal(1, f.Len())
}

func TestFanIn_Remove_Drops_Buffered_Events(t *testing.T) {
	req := require.New(t)
	f := newTestFanIn(t)
	general := broadcast.New[event.Event](16)
	random := broadcast.New[event.Event](16)
	req.NoError(f.Add("general", general.Subscribe()))
	req.NoError(f.Add("random", random.Subscribe()))

	// Given random traffic already pulled into the merged buffer
	_, _ = random.Publish(message("random", "stale"))
	req.Eventually(func() bool { return len(f.Out()) == 1 }, time.Second, 5*time.Millisecond)

	// When random is removed
	req.True(f.Remove("random"))
	req.False(f.Remove("random"))
	_, _ = random.Publish(message("random", "late"))
	_, _ = general.Publish(message("general", "fresh"))

	// Then only general is yielded
	msg := next(t, f).(event.RoomMessage)
	req.Equal("fresh", msg.Content)
	req.Equal([]domain.RoomID{"general"}, f.Rooms())
}

func TestFanIn_Readd_Does_Not_Revive_Old_Items(t *testing.T) {
	req := require.New(t)
	f := newTestFanIn(t)
	random := broadcast.New[event.Event](16)
	req.NoError(f.Add("random", random.Subscribe()))
	_, _ = random.Publish(message("random", "old"))
	req.Eventually(func() bool { return len(f.Out()) == 1 }, time.Second, 5*time.Millisecond)

	// When the room is removed and joined again
	f.Remove("random")
	req.NoError(f.Add("random", random.Subscribe()))
	_, _ = random.Publish(message("random", "new"))

	// Then the item buffered under the first subscription is discarded
	msg := next(t, f).(event.RoomMessage)
	req.Equal("new", msg.Content)
}

func TestFanIn_Lag_Is_Surfaced(t *testing.T) {
	req := require.New(t)
	f := newTestFanIn(t)
	general := broadcast.New[event.Event](2)
	receiver := general.Subscribe()

	// Given a receiver already behind before being added
	for i := 0; i < 5; i++ {
		_, _ = general.Publish(message("general", string(rune('a'+i))))
	}
	req.NoError(f.Add("general", receiver))

	// Then a lag notification comes first, followed by what is retained
	req.Equal(event.Lagged{Room: "general", Missed: 3}, next(t, f))
	req.Equal("d", next(t, f).(event.RoomMessage).Content)
	req.Equal("e", next(t, f).(event.RoomMessage).Content)
}

func TestFanIn_Close(t *testing.T) {
	req := require.New(t)
	f := NewFanIn(logs.GetLoggerFromLevel(slog.LevelError), 8, nil)
	ch := broadcast.New[event.Event](4)
	req.NoError(f.Add("general", ch.Subscribe()))

	f.Close()

	_, err := f.Next(context.Background())
	req.ErrorIs(err, errors.ErrClosed)
	req.ErrorIs(f.Add("random", ch.Subscribe()), errors.ErrClosed)
	req.Equal(0, f.Len())
}
