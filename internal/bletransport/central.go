// Package bletransport implements the fleet Transmitter port over a BLE
// central role. One Central wraps the host adapter; every transmitter it
// produces shares that adapter, so at most one scan runs at a time.
package bletransport

import (
	"errors"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"

	"wristlink/go-fleet/internal/fleet"
	"wristlink/go-fleet/internal/platform/ratelimiter"
	"wristlink/go-fleet/pkg/models"
)

// Characteristic layout inside the peripheral service: one characteristic
// for named config fields, one for data samples, one for presenting the
// session password.
const (
	configCharacteristicUUID = "0000f0a1-0000-1000-8000-00805f9b34fb"
	dataCharacteristicUUID   = "0000f0a2-0000-1000-8000-00805f9b34fb"
	authCharacteristicUUID   = "0000f0a3-0000-1000-8000-00805f9b34fb"
)

var ErrNoAdapter = errors.New("bletransport: host adapter unavailable")

type Config struct {
	ServiceUUID    string
	CandidateRPS   float64
	CandidateBurst int
	ConnectTimeout time.Duration
}

type Central struct {
	adapter     *bluetooth.Adapter
	logger      *slog.Logger
	limiter     *ratelimiter.MapLimiter
	serviceUUID bluetooth.UUID
	configUUID  bluetooth.UUID
	dataUUID    bluetooth.UUID
	authUUID    bluetooth.UUID
	timeout     time.Duration
}

// NewCentral enables the default host adapter and prepares the shared scan
// throttle. CandidateRPS/Burst bound how often one advertising address is
// evaluated as a discovery candidate.
func NewCentral(cfg Config, logger *slog.Logger) (*Central, error) {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := bluetooth.DefaultAdapter
	if adapter == nil {
		return nil, ErrNoAdapter
	}
	if err := adapter.Enable(); err != nil {
		return nil, err
	}

	serviceUUID, err := bluetooth.ParseUUID(cfg.ServiceUUID)
	if err != nil {
		return nil, err
	}
	configUUID, err := bluetooth.ParseUUID(configCharacteristicUUID)
	if err != nil {
		return nil, err
	}
	dataUUID, err := bluetooth.ParseUUID(dataCharacteristicUUID)
	if err != nil {
		return nil, err
	}
	authUUID, err := bluetooth.ParseUUID(authCharacteristicUUID)
	if err != nil {
		return nil, err
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Central{
		adapter:     adapter,
		logger:      logger.With("component", "bletransport"),
		limiter:     ratelimiter.New(cfg.CandidateRPS, cfg.CandidateBurst, 10*time.Minute),
		serviceUUID: serviceUUID,
		configUUID:  configUUID,
		dataUUID:    dataUUID,
		authUUID:    authUUID,
		timeout:     timeout,
	}, nil
}

// Factory returns the transmitter constructor the fleet manager uses for
// both bound devices and transient scan sessions.
func (c *Central) Factory() fleet.TransmitterFactory {
	return func(device *models.Device, sink fleet.EventSink, password string) fleet.Transmitter {
		return newTransmitter(c, device, sink, password)
	}
}
