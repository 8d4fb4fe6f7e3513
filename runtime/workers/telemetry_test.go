package workers

import (
	"bytes"
	"context"
	"log/slog"
	"roomchat/domain"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTelemetryWorker_Reports_Active_Rooms_Only(t *testing.T) {
	req := require.New(t)
	out := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(out, nil))
	stats := func() []domain.RoomStats {
		return []domain.RoomStats{
			{Room: domain.RoomDescriptor{ID: "general", Name: "General"}, Members: 2, Published: 7, Subscribers: 2},
			{Room: domain.RoomDescriptor{ID: "random", Name: "Random"}},
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	err := NewTelemetryWorker(log, 20*time.Millisecond, stats).Run(ctx)

	req.ErrorIs(err, context.DeadlineExceeded)
	req.Contains(out.String(), "room_id=general")
	req.Contains(out.String(), "published=7")
	req.NotContains(out.String(), "room_id=random")
}

type recorder struct {
	mu      sync.Mutex
	samples int
}

func (r *recorder) Process(uint64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples++
}

func TestHeartbeatWorker_Samples_Process(t *testing.T) {
	req := require.New(t)
	rec := &recorder{}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := NewHeartbeatWorker(slog.Default(), rec, 20*time.Millisecond).Run(ctx)

	req.ErrorIs(err, context.DeadlineExceeded)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	req.Positive(rec.samples)
}
