package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"wristlink/go-fleet/internal/config"
	"wristlink/go-fleet/internal/daemon"
	"wristlink/go-fleet/internal/platform/privacylog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to fleetd.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for daemon local data (optional)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address override (optional)")
	transport := flag.String("transport", "", "Transport override: ble | mock")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()
	if *showVersion {
		fmt.Printf("fleetd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	handler := privacylog.WrapHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if *dataDir != "" {
		_ = os.Setenv("WRISTLINK_DATA_DIR", *dataDir)
	}
	if *metricsAddr != "" {
		_ = os.Setenv("WRISTLINK_METRICS_ADDR", *metricsAddr)
	}
	if *transport != "" {
		_ = os.Setenv("WRISTLINK_TRANSPORT", *transport)
	}
	cfg := config.LoadFromPath(*configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("fleetd failed to initialize", "error", err)
		os.Exit(1)
	}

	logger.Info("fleetd starting", "transport", cfg.Transport.Backend)
	if err := d.Run(ctx); err != nil {
		logger.Error("fleetd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("fleetd stopped")
}
