// Command bridge runs the MQTT/ZeroMQ bridge: it loads configuration,
// starts the Supervisor, and blocks until SIGINT/SIGTERM requests a
// graceful shutdown.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zhxiaoyu/zeromqtt/internal/bridgeevents"
	"github.com/zhxiaoyu/zeromqtt/internal/bridgestatus"
	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/control"
	"github.com/zhxiaoyu/zeromqtt/internal/stats"
	"github.com/zhxiaoyu/zeromqtt/internal/supervisor"
)

func main() {
	logFormat := flag.String("log-format", "text", "log output format: text or json")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	statusInterval := flag.Duration("status-interval", 30*time.Second, "interval between status log lines")
	flag.Parse()

	logger := newLogger(*logFormat, *logLevel)
	slog.SetDefault(logger)

	store := config.NewMemStore()
	agg := stats.New()
	bus := bridgeevents.NewSubject(bridgeevents.WithLogger(logger))

	sup := supervisor.New(store, agg, supervisor.WithLogger(logger), supervisor.WithEvents(bus))
	facade := control.New(sup)

	logWorkerEvents(bus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The supervisor loop outlives the signal context so that the final
	// Stop command below is still processed after a signal arrives.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go sup.Run(runCtx)

	if _, err := facade.Submit(ctx, control.Command{Kind: control.Start}); err != nil {
		logger.Error("bridge: failed to start", "error", err)
		os.Exit(1)
	}
	logger.Info("bridge: started")

	go reportStatus(ctx, sup, agg, *statusInterval, logger)

	<-ctx.Done()
	logger.Info("bridge: shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := facade.Submit(stopCtx, control.Command{Kind: control.Stop}); err != nil {
		logger.Error("bridge: error during shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("bridge: stopped cleanly")
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func logWorkerEvents(bus *bridgeevents.Subject, logger *slog.Logger) {
	bridgeevents.Subscribe(bus, bridgeevents.TopicWorkerConnected, func(_ context.Context, e bridgeevents.WorkerConnectedEvent) error {
		logger.Info("worker connected", "endpoint", e.Endpoint, "generation", e.Generation)
		return nil
	})
	bridgeevents.Subscribe(bus, bridgeevents.TopicWorkerDisconnected, func(_ context.Context, e bridgeevents.WorkerDisconnectedEvent) error {
		logger.Warn("worker disconnected", "endpoint", e.Endpoint, "reason", e.Reason)
		return nil
	})
	bridgeevents.Subscribe(bus, bridgeevents.TopicWorkerError, func(_ context.Context, e bridgeevents.WorkerErrorEvent) error {
		logger.Error("worker error", "endpoint", e.Endpoint, "error", e.Error)
		return nil
	})
	bridgeevents.Subscribe(bus, bridgeevents.TopicBridgeReconfigured, func(_ context.Context, e bridgeevents.BridgeReconfiguredEvent) error {
		logger.Info("bridge reconfigured",
			"spawned", len(e.SpawnedWorkers), "shutdown", len(e.ShutdownWorkers), "respawned", len(e.RespawnedWorkers))
		return nil
	})
}

func reportStatus(ctx context.Context, sup *supervisor.Supervisor, agg *stats.Aggregator, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := bridgestatus.Build(sup, agg)
			logger.Info("bridge status",
				"state", st.State,
				"uptime_seconds", st.UptimeSeconds,
				"endpoints", len(st.Endpoints),
				"errors", st.ErrorCount,
				"messages_per_sec", st.MessagesPerSec)
		}
	}
}
