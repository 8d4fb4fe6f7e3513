package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessRecorder receives the samples of the heartbeat.
type ProcessRecorder interface {
	Process(rss uint64, cpuPercent float64)
}

type HeartbeatWorker struct {
	log      *slog.Logger
	recorder ProcessRecorder
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, recorder ProcessRecorder, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, recorder: recorder, interval: interval}
}

// Run samples memory and CPU of the server process at every interval.
// A failed sample is logged and skipped, the next tick tries again.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	// Resolved once, reused at every tick
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.recorder.Process(rss, cpu)
			w.log.Debug("Heartbeat", "rss_bytes", rss, "cpu_percent", cpu)
		}
	}
}

// selfStats retrieves resident memory and CPU usage of the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
