// Package main provides the entry point for the registry lifecycle daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sheetops/lifecycled/api"
	"github.com/sheetops/lifecycled/pkg/config"
	"github.com/sheetops/lifecycled/pkg/dispatch"
	"github.com/sheetops/lifecycled/pkg/engine"
	"github.com/sheetops/lifecycled/pkg/gateways"
	"github.com/sheetops/lifecycled/pkg/interfaces"
	"github.com/sheetops/lifecycled/pkg/logger"
	"github.com/sheetops/lifecycled/pkg/metrics"
	"github.com/sheetops/lifecycled/pkg/registry"
	"github.com/sheetops/lifecycled/pkg/sweep"
)

// Version information (set by build process)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	logLevel    = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	showVersion = flag.Bool("version", false, "Show version information")
	sweepOnce   = flag.Bool("sweep", false, "Run one sweep and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("lifecycled %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		if err := cfg.FromFile(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	appLogger := logger.NewConsoleLogger(cfg.LogLevel)
	appMetrics := metrics.NewMemoryMetrics()

	reg, err := registry.NewRegistry(&cfg.Registry)
	if err != nil {
		appLogger.Fatal("Failed to create registry", err)
	}

	notifier := gateways.NewHTTPNotifier(&cfg.Notification, reg, appLogger)
	scheduler := gateways.NewHTTPScheduler(&cfg.Scheduling, reg, appLogger)
	dispatcher := dispatch.NewDefaultDispatcher(reg, notifier, scheduler, appLogger, appMetrics)

	var conn *nats.Conn
	var lock interfaces.RunLock = sweep.NewLocalLock()
	if cfg.NATS.Enabled {
		conn, err = nats.Connect(cfg.NATS.URLs[0],
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			appLogger.Fatal("Failed to connect to NATS", err)
		}
		defer conn.Close()

		natsLock, err := sweep.NewNATSLock(conn, cfg.NATS.LockBucket, cfg.NATS.LockTTL)
		if err != nil {
			appLogger.Fatal("Failed to create NATS run lock", err)
		}
		lock = natsLock
	}

	sweeper := sweep.NewSweeper(reg, dispatcher, lock, appLogger, appMetrics, cfg.NATS.LockTTL, cfg.StaleDays)
	eng := engine.New(reg, dispatcher, sweeper, appLogger, appMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *sweepOnce {
		if err := eng.RunSweep(ctx); err != nil {
			appLogger.Fatal("Sweep failed", err)
		}
		return
	}

	// Edits arriving on the change-capable store feed the engine directly.
	if store, ok := reg.(interfaces.ChangeStore); ok {
		eng.Bind(store)
	}

	if *configFile != "" {
		stopWatch, err := cfg.Watch(*configFile, func(c *config.Config) {
			sweeper.SetStaleDays(c.StaleDays)
			appLogger.Info("Configuration reloaded", map[string]interface{}{"stale_days": c.StaleDays})
		})
		if err != nil {
			appLogger.Warn("Config watch unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			defer stopWatch()
		}
	}

	if conn != nil {
		unsubscribe, err := eng.SubscribeEdits(conn, cfg.NATS.EditSubject)
		if err != nil {
			appLogger.Fatal("Failed to subscribe to edit events", err)
		}
		defer unsubscribe()
	}

	// Daily sweep ticker. Exact fire time is not guaranteed to the minute.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := eng.RunSweep(ctx); err != nil {
					appLogger.Error("Scheduled sweep failed", err)
				}
			}
		}
	}()

	server := api.NewServer(eng, reg, cfg, appLogger)
	go func() {
		if err := server.Start(); err != nil {
			appLogger.Error("API server stopped", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		appLogger.Info("Received shutdown signal, gracefully shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Failed to shut down API server", err)
	}
}
