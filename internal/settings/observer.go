// Package settings maps configuration-key changes to the devices whose
// config must be re-pushed. The key-to-device mapping is operator policy
// registered at wiring time; the fleet core only sees MarkNeedsResync.
package settings

import (
	"log/slog"
	"sync"

	"wristlink/go-fleet/pkg/models"
)

// Resync is the slice of the fleet manager the observer needs.
type Resync interface {
	MarkNeedsResync(dev *models.Device)
}

type Observer struct {
	mu     sync.Mutex
	resync Resync
	logger *slog.Logger
	byKey  map[string][]*models.Device
}

func NewObserver(resync Resync, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		resync: resync,
		logger: logger.With("component", "settings"),
		byKey:  make(map[string][]*models.Device),
	}
}

// Bind registers devices affected by a setting key. Repeated calls for the
// same key accumulate.
func (o *Observer) Bind(key string, devices ...*models.Device) {
	if key == "" || len(devices) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byKey[key] = append(o.byKey[key], devices...)
}

// Unbind drops all device associations for a key.
func (o *Observer) Unbind(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.byKey, key)
}

// OnSettingChanged flags every device bound to the key for a config resync.
// Unknown keys are a no-op.
func (o *Observer) OnSettingChanged(key string) {
	o.mu.Lock()
	affected := append([]*models.Device(nil), o.byKey[key]...)
	o.mu.Unlock()

	if len(affected) == 0 {
		return
	}
	o.logger.Info("setting changed, flagging devices for resync",
		"setting_key", key, "device_count", len(affected))
	for _, dev := range affected {
		o.resync.MarkNeedsResync(dev)
	}
}
