package fleet

import (
	"wristlink/go-fleet/internal/metrics"
	"wristlink/go-fleet/pkg/models"
)

// configFields is the ordered set of configuration values pushed during a
// resync. Extend the slice to push more fields; push logic is agnostic.
func configFields(dev *models.Device) []models.ConfigField {
	return []models.ConfigField{
		{Name: "textColor", Value: dev.TextColor},
	}
}

// handleReadyLocked reacts to a ready-to-receive event: config resync if
// flagged, then a data push attempt regardless of the resync outcome.
func (m *Manager) handleReadyLocked(dev *models.Device) {
	if dev == nil {
		return
	}
	m.syncConfigLocked(dev)
	m.sendLatestReadingLocked(dev)
}

// syncConfigLocked pushes the full config set when the device is flagged.
// All-or-nothing: the flag is cleared only after every field was written,
// so a failed push retries from the first field on the next ready event.
func (m *Manager) syncConfigLocked(dev *models.Device) {
	addr := models.NormalizeAddress(dev.Address)
	if !m.needsResync[addr] {
		return
	}
	b, ok := m.bindings[addr]
	if !ok || !b.Ready() {
		m.logger.Debug("config resync skipped, no ready binding", "device_address", addr)
		return
	}
	if !b.pushConfig(configFields(dev)) {
		m.logger.Warn("config push failed, will retry on next ready event",
			"device_address", addr)
		m.metrics.ConfigPush(metrics.OutcomeFailed)
		return
	}
	m.needsResync[addr] = false
	m.metrics.ConfigPush(metrics.OutcomeOK)
	m.logger.Info("config resynced", "device_address", addr)
}

// SendLatestReading pushes the most recent fresh sample. With a target it
// goes only to that device's binding; without one it goes to every binding,
// each of which decides whether it can deliver right now. A stale or
// missing sample is a silent no-op.
func (m *Manager) SendLatestReading(target *models.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendLatestReadingLocked(target)
}

func (m *Manager) sendLatestReadingLocked(target *models.Device) {
	if m.readings == nil {
		return
	}
	samples := m.readings.Latest(models.ReadingQuery{
		Limit:      1,
		Since:      m.now().Add(-m.freshness),
		ExcludeRaw: true,
	})
	if len(samples) == 0 {
		m.logger.Debug("no fresh sample to push")
		m.metrics.SamplePush(metrics.OutcomeStale)
		return
	}
	sample := samples[0]

	if target != nil {
		b, ok := m.bindings[models.NormalizeAddress(target.Address)]
		if !ok {
			m.logger.Debug("sample push skipped, no binding", "target_address", target.Address)
			return
		}
		m.pushSampleTo(b, sample)
		return
	}
	for _, b := range m.bindings {
		m.pushSampleTo(b, sample)
	}
}

func (m *Manager) pushSampleTo(b *Binding, sample models.Sample) {
	if b.pushSample(sample) {
		m.metrics.SamplePush(metrics.OutcomeDelivered)
		return
	}
	m.metrics.SamplePush(metrics.OutcomeUndelivered)
	m.logger.Debug("sample not delivered", "device_address", b.device.Address)
}
