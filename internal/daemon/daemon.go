// Package daemon assembles the fleet service from its parts: config,
// encrypted device store, reading journal, metrics endpoint, transport
// backend and the fleet manager.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wristlink/go-fleet/internal/bletransport"
	"wristlink/go-fleet/internal/config"
	"wristlink/go-fleet/internal/fleet"
	"wristlink/go-fleet/internal/metrics"
	"wristlink/go-fleet/internal/notify"
	"wristlink/go-fleet/internal/readings"
	"wristlink/go-fleet/internal/settings"
	"wristlink/go-fleet/internal/store"
)

const notificationHistory = 256

type Daemon struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	journal  *readings.Journal
	hub      *notify.Hub
	manager  *fleet.Manager
	observer *settings.Observer
}

func New(cfg config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	fleetMetrics := metrics.New(registry)

	journal := readings.NewJournal(cfg.JournalCapacity)
	hub := notify.NewHub(notificationHistory)

	factory, err := transmitterFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	deviceStore := store.NewFileStore(cfg.StorePath(), cfg.StoreSecret)
	manager, err := fleet.New(fleet.Options{
		Store:           deviceStore,
		Readings:        journal,
		NewTransmitter:  factory,
		Logger:          logger,
		Metrics:         fleetMetrics,
		Notifications:   hub,
		FreshnessWindow: cfg.FreshnessWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("fleet: %w", err)
	}

	return &Daemon{
		cfg:      cfg,
		logger:   logger.With("component", "daemon"),
		registry: registry,
		journal:  journal,
		hub:      hub,
		manager:  manager,
		observer: settings.NewObserver(manager, logger),
	}, nil
}

func transmitterFactory(cfg config.Config, logger *slog.Logger) (fleet.TransmitterFactory, error) {
	switch cfg.Transport.Backend {
	case config.TransportMock:
		return bletransport.MockFactory(logger), nil
	case config.TransportBLE, "":
		central, err := bletransport.NewCentral(bletransport.Config{
			ServiceUUID:    cfg.Transport.ServiceUUID,
			CandidateRPS:   cfg.Transport.CandidateRPS,
			CandidateBurst: cfg.Transport.CandidateBurst,
			ConnectTimeout: cfg.Transport.ConnectTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return central.Factory(), nil
	default:
		return nil, fmt.Errorf("unknown transport backend %q", cfg.Transport.Backend)
	}
}

// Fleet exposes the device manager to operator surfaces.
func (d *Daemon) Fleet() *fleet.Manager { return d.manager }

// Journal exposes the reading sink so collectors can append samples.
func (d *Daemon) Journal() *readings.Journal { return d.journal }

// Settings exposes the observer that maps changed setting keys to device
// resync flags.
func (d *Daemon) Settings() *settings.Observer { return d.observer }

// Notifications exposes the operator notification hub.
func (d *Daemon) Notifications() *notify.Hub { return d.hub }

// Run serves the metrics endpoint and logs operator notifications until
// the context is cancelled, then persists the device registry.
func (d *Daemon) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: d.cfg.MetricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("metrics listening", "addr", d.cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	_, notifications, cancelSub := d.hub.Subscribe(0)
	defer cancelSub()
	go func() {
		for n := range notifications {
			d.logger.Info("fleet notification", "kind", string(n.Kind), "seq", n.Seq)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("metrics server shutdown", "error", err)
	}

	if err := d.manager.Save(); err != nil {
		d.logger.Error("persisting device registry on shutdown", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
