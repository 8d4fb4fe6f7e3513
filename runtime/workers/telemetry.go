package workers

import (
	"context"
	"log/slog"
	"roomchat/domain"
	"time"
)

// TelemetryWorker logs the activity of every room at a fixed interval.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	stats          func() []domain.RoomStats
	last           map[domain.RoomID]uint64
}

func NewTelemetryWorker(log *slog.Logger, metricInterval time.Duration, stats func() []domain.RoomStats) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		stats:          stats,
		last:           make(map[domain.RoomID]uint64),
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.report()
		}
	}
}

// report logs rooms that are occupied or saw traffic since the last tick.
func (w *TelemetryWorker) report() {
	for _, s := range w.stats() {
		delta := s.Published - w.last[s.Room.ID]
		w.last[s.Room.ID] = s.Published
		if s.Members == 0 && delta == 0 {
			continue
		}
		w.log.Info("Room activity",
			"room_id", s.Room.ID,
			"members", s.Members,
			"published", delta,
			"subscribers", s.Subscribers)
	}
}
