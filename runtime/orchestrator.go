// Package runtime boots the room set and wires the long-lived components of the server.
// It holds no protocol logic: sessions and transports only get what it built.
package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"roomchat/contract"
	"roomchat/moderation"
	"roomchat/observability"
	"roomchat/runtime/workers"
	"roomchat/session"
	"strings"
	"time"
)

//go:embed censored/*
var censoredFolder embed.FS

type Options struct {
	BroadcastCapacity int
	FanInBufferSize   int
	EnableModeration  bool
	CharReplacement   rune
	MetricInterval    time.Duration
}

type Orchestrator struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	metrics    *observability.Metrics
	registry   *Registry
	manager    *RoomManager
	sessions   *session.Factory
	opts       Options
}

// NewOrchestrator loads the rooms from source and builds everything sessions depend on.
// Any failure here must abort the startup: the room set cannot change later.
func NewOrchestrator(ctx context.Context, log *slog.Logger, supervisor contract.ISupervisor,
	source contract.RoomSource, metrics *observability.Metrics, opts Options) (*Orchestrator, error) {
	descriptors, err := source.LoadRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rooms: %w", err)
	}
	registry, err := NewRegistry(descriptors)
	if err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("%d rooms loaded [%s]", registry.Len(), strings.Join(registryNames(registry), ",")))

	var roomMetrics contract.IMetrics
	if metrics != nil {
		roomMetrics = metrics
	}
	manager := NewRoomManager(log, registry, opts.BroadcastCapacity, roomMetrics)

	var moderator contract.IModerator
	if opts.EnableModeration {
		m, err := prepareModeration(log, opts.CharReplacement)
		if err != nil {
			return nil, err
		}
		moderator = m
	}

	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		metrics:    metrics,
		registry:   registry,
		manager:    manager,
		sessions:   session.NewFactory(log, manager, moderator, roomMetrics, opts.FanInBufferSize),
		opts:       opts,
	}, nil
}

func registryNames(r *Registry) []string {
	names := make([]string, 0, r.Len())
	for _, id := range r.IDs() {
		names = append(names, id.String())
	}
	return names
}

// prepareModeration loads censored words and builds the Aho-Corasick automaton.
func prepareModeration(log *slog.Logger, charReplacement rune) (*moderation.Moderator, error) {
	data, err := NewCensoredLoader(censoredFolder).LoadAll("censored")
	if err != nil {
		return nil, err
	}

	log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	return moderation.NewModerator(data.Words, charReplacement, log)
}

func (o *Orchestrator) Registry() *Registry { return o.registry }
func (o *Orchestrator) Manager() *RoomManager { return o.manager }
func (o *Orchestrator) Sessions() *session.Factory { return o.sessions }

// Add registers transport workers to be supervised along with the internal ones.
func (o *Orchestrator) Add(w ...contract.Worker) {
	o.supervisor.Add(w...)
}

// Start runs every supervised worker and blocks until they all stopped.
func (o *Orchestrator) Start(ctx context.Context) {
	if o.opts.MetricInterval > 0 {
		o.supervisor.Add(workers.NewTelemetryWorker(o.log, o.opts.MetricInterval, o.manager.Stats))
		if o.metrics != nil {
			o.supervisor.Add(workers.NewHeartbeatWorker(o.log, o.metrics, o.opts.MetricInterval))
		}
	}
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
}

// Stop cancels the workers then closes the room channels so remaining sessions drain and end.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
	o.manager.Close()
}
