package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"roomchat/contract"
	"roomchat/infrastructure/grpc/server"
	"roomchat/infrastructure/storage"
	"roomchat/infrastructure/tcp"
	"roomchat/infrastructure/websocket"
	"roomchat/internal"
	"roomchat/observability"
	"roomchat/protocol"
	"roomchat/runtime"
	"roomchat/runtime/workers"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal is received.
// Deferred cleanups run before the exit code reaches main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	var charReplacement rune
	if config.EnableModeration {
		charReplacement, _ = internal.CharacterRune(config.CharReplacement)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Room source
	var source contract.RoomSource
	if config.RoomsBadgerPath != "" {
		db, err := badger.Open(badger.DefaultOptions(config.RoomsBadgerPath).
			WithLoggingLevel(badger.WARNING).
			WithReadOnly(true))
		if err != nil {
			return exitRuntime, fmt.Errorf("room catalog opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		source = storage.NewRoomRepository(db, logger)
	} else {
		source = runtime.NewFileRoomSource(config.RoomsFile)
	}

	// 4. Orchestration
	metrics := observability.NewMetrics()
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	orchestrator, err := runtime.NewOrchestrator(ctx, logger, sup, source, metrics, runtime.Options{
		BroadcastCapacity: config.BroadcastCapacity,
		FanInBufferSize:   config.FanInBufferSize,
		EnableModeration:  config.EnableModeration,
		CharReplacement:   charReplacement,
		MetricInterval:    config.MetricInterval,
	})
	if err != nil {
		return exitRuntime, fmt.Errorf("bootstrap failed: %w", err)
	}

	// 5. Transports
	opts := protocol.Options{
		MaxFrameSize:     config.MaxFrameSize,
		MaxContentLength: config.MaxContentLength,
		IdleTimeout:      config.IdleTimeout,
		WriteTimeout:     config.WriteTimeout,
	}
	orchestrator.Add(tcp.NewServer(logger, config.Address(config.Port), orchestrator.Sessions(), opts))
	if config.WSPort > 0 {
		orchestrator.Add(websocket.NewServer(logger, config.Address(config.WSPort),
			orchestrator.Sessions(), opts, websocket.DefaultPingInterval))
	}
	if config.AdminPort > 0 {
		orchestrator.Add(internal.NewDebugServer(logger, config.Address(config.AdminPort),
			metrics.Handler(), orchestrator.Manager().Stats, config.ShutdownTimeout))
	}
	if config.GRPCPort > 0 {
		orchestrator.Add(server.NewServer(logger, config.Address(config.GRPCPort),
			server.NewAdminServer(orchestrator.Manager().Stats)))
	}

	// 6. Start and wait for a signal
	done := make(chan struct{})
	go func() {
		defer close(done)
		orchestrator.Start(ctx)
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	orchestrator.Stop()
	<-done
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}
