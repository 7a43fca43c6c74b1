package fleet

import (
	"wristlink/go-fleet/internal/notify"
	"wristlink/go-fleet/pkg/models"
)

// discoverySession is the transient state of one onboarding scan: the
// single pending callback and the transient transmitter doing the
// scanning. Both live and die together; replacing a session always stops
// the previous transient transmitter first.
type discoverySession struct {
	callback func(*models.Device)
	tx       Transmitter
}

// StartScan arms callback as the single pending discovery callback and
// starts scanning on a fresh transient transmitter. Any previous session
// is stopped and replaced. Reports whether the scan was accepted.
func (m *Manager) StartScan(callback func(*models.Device)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopDiscoveryLocked()
	return m.startDiscoveryLocked(callback)
}

// StopScan ends the active discovery session, if any. The pending callback
// is discarded without being invoked. In-flight connection attempts are not
// cancelled.
func (m *Manager) StopScan() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopDiscoveryLocked()
}

func (m *Manager) startDiscoveryLocked(callback func(*models.Device)) bool {
	tx := m.newTransmitter(nil, m, "")
	if tx == nil {
		m.logger.Error("transmitter factory returned nil for scan session")
		return false
	}
	m.discovery = &discoverySession{callback: callback, tx: tx}
	m.metrics.ScanStarted()
	if !tx.StartScan() {
		m.logger.Warn("scan start rejected by transmitter")
		m.discovery = nil
		return false
	}
	m.logger.Info("discovery scan started")
	return true
}

func (m *Manager) stopDiscoveryLocked() {
	if m.discovery == nil {
		return
	}
	if m.discovery.tx != nil {
		m.discovery.tx.StopScan()
	}
	m.discovery = nil
	m.logger.Info("discovery scan stopped")
}

// handleConnectedLocked evaluates a connected event. Connections that carry
// a device identity are ordinary reconnects. Identity-less connections are
// discovery candidates: a known address is a duplicate (drop it, scan
// again), an unseen address is onboarded. Returns the callback invocation
// to run after the lock is released, or nil.
func (m *Manager) handleConnectedLocked(ev Connected) func() {
	if ev.Device != nil {
		m.logger.Info("device connected", "device_address", ev.Device.Address)
		return nil
	}

	addr := models.NormalizeAddress(ev.Address)
	if m.discovery == nil {
		m.logger.Debug("candidate connection without active discovery, dropping",
			"candidate_address", addr)
		if ev.Transmitter != nil {
			ev.Transmitter.Disconnect()
		}
		return nil
	}

	if _, known := m.devices[addr]; known {
		// Duplicate of a device the operator already knows about. Drop the
		// connection and keep scanning on a fresh transient transmitter;
		// the pending callback stays armed.
		m.logger.Info("duplicate candidate, restarting scan", "candidate_address", addr)
		m.metrics.DuplicateCandidate()
		if ev.Transmitter != nil {
			ev.Transmitter.StopScan()
			ev.Transmitter.Disconnect()
		}
		callback := m.discovery.callback
		m.discovery = nil
		m.startDiscoveryLocked(callback)
		return nil
	}

	return m.onboardLocked(ev, addr)
}

func (m *Manager) onboardLocked(ev Connected, addr string) func() {
	if ev.Transmitter == nil {
		// Nothing to bind to; drop the candidate and keep the session armed.
		m.logger.Warn("candidate connection without transmitter, dropping",
			"candidate_address", addr)
		return nil
	}
	ev.Transmitter.StopScan()

	dev := &models.Device{
		Address:       addr,
		Name:          ev.Name,
		ShouldConnect: true,
		TextColor:     models.DefaultTextColor,
		CreatedAt:     m.now(),
	}
	m.devices[addr] = dev
	m.needsResync[addr] = true
	// The candidate connection is already live; reuse it instead of
	// reconnecting.
	m.bindings[addr] = newBinding(dev, ev.Transmitter)
	if binder, ok := ev.Transmitter.(DeviceBinder); ok {
		binder.BindDevice(dev)
	}

	callback := m.discovery.callback
	m.discovery = nil

	if err := m.store.Add(dev); err != nil {
		m.logger.Error("store new device failed", "device_address", addr, "error", err)
	} else if err := m.store.Persist(); err != nil {
		m.logger.Error("persist new device failed", "device_address", addr, "error", err)
	}

	m.metrics.DeviceOnboarded()
	m.notifications.Publish(notify.KindDeviceOnboarded, addr)
	m.logger.Info("device onboarded", "device_address", addr, "device_name", ev.Name)

	if callback == nil {
		return nil
	}
	return func() { callback(dev) }
}
