package bletransport

import (
	"log/slog"
	"sync"

	"wristlink/go-fleet/internal/fleet"
	"wristlink/go-fleet/pkg/models"
)

// MockFactory returns a transmitter factory backed by no hardware. Bound
// transmitters report connected and ready shortly after Connect; scans
// start but never surface candidates. Useful for running the daemon on
// hosts without a BLE adapter.
func MockFactory(logger *slog.Logger) fleet.TransmitterFactory {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bletransport", "backend", "mock")
	return func(device *models.Device, sink fleet.EventSink, password string) fleet.Transmitter {
		return &mockTransmitter{logger: logger, device: device, sink: sink, password: password}
	}
}

type mockTransmitter struct {
	logger   *slog.Logger
	sink     fleet.EventSink
	password string

	mu        sync.Mutex
	device    *models.Device
	connected bool
	scanning  bool
}

var _ fleet.Transmitter = (*mockTransmitter)(nil)
var _ fleet.DeviceBinder = (*mockTransmitter)(nil)

func (m *mockTransmitter) Connect() bool {
	m.mu.Lock()
	if m.device == nil {
		m.mu.Unlock()
		return false
	}
	if m.connected {
		m.mu.Unlock()
		return true
	}
	m.connected = true
	dev := m.device
	m.mu.Unlock()

	go func() {
		m.sink.HandleEvent(fleet.Connected{
			Device:      dev,
			Address:     dev.Address,
			Name:        dev.Name,
			Transmitter: m,
		})
		// A configured password is accepted unconditionally, mirroring the
		// real backend's handshake during attach.
		if m.password != "" {
			m.sink.HandleEvent(fleet.AuthenticationResult{Device: dev, Success: true})
		}
		m.sink.HandleEvent(fleet.ReadyToReceive{Device: dev})
	}()
	return true
}

func (m *mockTransmitter) Disconnect() {
	m.mu.Lock()
	connected := m.connected
	dev := m.device
	m.connected = false
	m.mu.Unlock()

	if !connected {
		return
	}
	go m.sink.HandleEvent(fleet.Disconnected{Device: dev})
}

func (m *mockTransmitter) StartScan() bool {
	m.mu.Lock()
	m.scanning = true
	m.mu.Unlock()
	m.logger.Info("scan started; mock backend surfaces no candidates")
	return true
}

func (m *mockTransmitter) StopScan() {
	m.mu.Lock()
	m.scanning = false
	m.mu.Unlock()
}

func (m *mockTransmitter) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockTransmitter) BindDevice(dev *models.Device) {
	m.mu.Lock()
	m.device = dev
	connected := m.connected
	m.mu.Unlock()

	if connected {
		go m.sink.HandleEvent(fleet.ReadyToReceive{Device: dev})
	}
}

func (m *mockTransmitter) WriteConfigField(name, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return false
	}
	m.logger.Debug("config field write", "field", name)
	return true
}

func (m *mockTransmitter) WriteSample(sample models.Sample) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return false
	}
	m.logger.Debug("sample write", "timestamp", sample.Timestamp)
	return true
}
