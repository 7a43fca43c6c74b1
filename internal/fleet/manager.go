// Package fleet owns the lifecycle of known wireless peripherals: the
// device registry, optional live session bindings, the discovery protocol
// for onboarding new peripherals, per-device config resync flags, and the
// freshness-windowed data push. All state mutation is serialized through
// one mutex; operator calls and transmitter events both go through it.
package fleet

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"wristlink/go-fleet/internal/metrics"
	"wristlink/go-fleet/internal/notify"
	"wristlink/go-fleet/pkg/models"
)

// DefaultFreshnessWindow is the maximum age of a data sample eligible for
// push to connected peripherals.
const DefaultFreshnessWindow = 5 * time.Minute

var (
	ErrNoStore       = errors.New("fleet: device store is required")
	ErrNoTransmitter = errors.New("fleet: transmitter factory is required")
)

type Options struct {
	Store          DeviceStore
	Readings       ReadingSource
	NewTransmitter TransmitterFactory
	Logger         *slog.Logger
	Metrics        *metrics.Fleet
	Notifications  *notify.Hub

	// FreshnessWindow bounds sample age for pushes; zero means the default.
	FreshnessWindow time.Duration

	// Clock is overridable for tests; zero means time.Now.
	Clock func() time.Time
}

type Manager struct {
	mu             sync.Mutex
	store          DeviceStore
	readings       ReadingSource
	newTransmitter TransmitterFactory
	logger         *slog.Logger
	metrics        *metrics.Fleet
	notifications  *notify.Hub
	freshness      time.Duration
	now            func() time.Time

	// Known devices and their bindings are kept in two separate maps, both
	// keyed by normalized address. A device present in devices but absent
	// from bindings is known-but-unbound.
	devices     map[string]*models.Device
	bindings    map[string]*Binding
	needsResync map[string]bool
	discovery   *discoverySession
}

// New loads the device registry from the store, creates bindings for every
// device marked should-connect (each binding initiates its connection), and
// flags every device for a config resync.
func New(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.NewTransmitter == nil {
		return nil, ErrNoTransmitter
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	freshness := opts.FreshnessWindow
	if freshness <= 0 {
		freshness = DefaultFreshnessWindow
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		store:          opts.Store,
		readings:       opts.Readings,
		newTransmitter: opts.NewTransmitter,
		logger:         logger.With("component", "fleet"),
		metrics:        opts.Metrics,
		notifications:  opts.Notifications,
		freshness:      freshness,
		now:            now,
		devices:        make(map[string]*models.Device),
		bindings:       make(map[string]*Binding),
		needsResync:    make(map[string]bool),
	}

	loaded, err := opts.Store.LoadAll()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, dev := range loaded {
		addr := models.NormalizeAddress(dev.Address)
		if addr == "" {
			m.logger.Warn("skipping stored device with empty address")
			continue
		}
		m.devices[addr] = dev
		m.needsResync[addr] = true
		if dev.ShouldConnect {
			m.createBindingLocked(dev)
		}
	}
	return m, nil
}

// Connect ensures exactly one binding exists for the device and asks it to
// connect. Reports whether the attempt was accepted.
func (m *Manager) Connect(dev *models.Device) bool {
	if dev == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := models.NormalizeAddress(dev.Address)
	if addr == "" {
		return false
	}
	if _, known := m.devices[addr]; !known {
		m.devices[addr] = dev
	}
	if b, ok := m.bindings[addr]; ok {
		m.metrics.ConnectInitiated()
		return b.Connect()
	}
	return m.createBindingLocked(dev) != nil
}

// Disconnect tears down the device's live connection. The binding is kept.
// No-op when no binding exists.
func (m *Manager) Disconnect(dev *models.Device) bool {
	if dev == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bindings[models.NormalizeAddress(dev.Address)]
	if !ok {
		m.logger.Debug("disconnect without binding", "device_address", dev.Address)
		return false
	}
	b.Disconnect()
	return true
}

// Delete removes the device from the registry, its binding and resync flag,
// then deletes and persists the store record. Absent entries are tolerated;
// the record is gone from storage once Delete returns.
func (m *Manager) Delete(dev *models.Device) error {
	if dev == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := models.NormalizeAddress(dev.Address)
	if b, ok := m.bindings[addr]; ok {
		b.Disconnect()
		delete(m.bindings, addr)
	}
	delete(m.needsResync, addr)
	delete(m.devices, addr)

	if err := m.store.Delete(dev); err != nil {
		return err
	}
	return m.store.Persist()
}

// MarkNeedsResync flags the device so the full config set is pushed on its
// next ready event. Works for devices without a binding, and tolerates
// devices the registry has never seen.
func (m *Manager) MarkNeedsResync(dev *models.Device) {
	if dev == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := models.NormalizeAddress(dev.Address)
	if addr == "" {
		return
	}
	m.needsResync[addr] = true
}

// List returns the known devices sorted by address, regardless of binding
// presence.
func (m *Manager) List() []*models.Device {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Device, 0, len(m.devices))
	for _, dev := range m.devices {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool {
		return models.NormalizeAddress(out[i].Address) < models.NormalizeAddress(out[j].Address)
	})
	return out
}

// Binding returns the device's binding, creating (and connecting) one when
// createIfAbsent is set. Returns nil when absent and creation was not asked.
func (m *Manager) Binding(dev *models.Device, createIfAbsent bool) *Binding {
	if dev == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.bindings[models.NormalizeAddress(dev.Address)]; ok {
		return b
	}
	if !createIfAbsent {
		return nil
	}
	return m.createBindingLocked(dev)
}

// Save persists the current device records.
func (m *Manager) Save() error {
	return m.store.Persist()
}

// createBindingLocked constructs the device's transmitter, stores the
// binding and initiates the connection.
func (m *Manager) createBindingLocked(dev *models.Device) *Binding {
	addr := models.NormalizeAddress(dev.Address)
	if addr == "" {
		return nil
	}
	tx := m.newTransmitter(dev, m, dev.BLEPassword)
	if tx == nil {
		m.logger.Error("transmitter factory returned nil", "device_address", dev.Address)
		return nil
	}
	b := newBinding(dev, tx)
	m.bindings[addr] = b
	m.metrics.ConnectInitiated()
	b.Connect()
	return b
}
