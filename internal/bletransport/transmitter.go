package bletransport

import (
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"wristlink/go-fleet/internal/fleet"
	"wristlink/go-fleet/pkg/models"
)

// The shared adapter rejects a new Scan while the previous one drains its
// last callback, so scan starts retry briefly before giving up.
const (
	scanStartAttempts = 5
	scanRetryDelay    = 200 * time.Millisecond
)

// transmitter is one BLE session: bound to a device, or transient for a
// discovery scan when device is nil. All events are delivered from this
// type's own goroutines, never from inside a caller's stack, because the
// fleet manager holds its lock while calling these methods.
type transmitter struct {
	central  *Central
	sink     fleet.EventSink
	password string

	mu         sync.Mutex
	device     *models.Device
	conn       bluetooth.Device
	configChar bluetooth.DeviceCharacteristic
	dataChar   bluetooth.DeviceCharacteristic
	connected  bool
	connecting bool
	scanning   bool
}

var _ fleet.Transmitter = (*transmitter)(nil)
var _ fleet.DeviceBinder = (*transmitter)(nil)

func newTransmitter(central *Central, device *models.Device, sink fleet.EventSink, password string) *transmitter {
	return &transmitter{
		central:  central,
		device:   device,
		sink:     sink,
		password: password,
	}
}

// Connect starts a connection attempt to the bound device. Idempotent:
// calls while connecting or connected are accepted and do nothing.
func (t *transmitter) Connect() bool {
	t.mu.Lock()
	if t.device == nil {
		t.mu.Unlock()
		return false
	}
	if t.connected || t.connecting {
		t.mu.Unlock()
		return true
	}
	t.connecting = true
	dev := t.device
	t.mu.Unlock()

	go t.connectLoop(dev)
	return true
}

func (t *transmitter) connectLoop(dev *models.Device) {
	mac, err := bluetooth.ParseMAC(models.NormalizeAddress(dev.Address))
	if err != nil {
		t.failConnect(dev, "invalid address: "+err.Error())
		return
	}
	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	conn, err := t.central.adapter.Connect(addr, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(t.central.timeout),
	})
	if err != nil {
		t.failConnect(dev, "connect: "+err.Error())
		return
	}
	if err := t.attach(conn); err != nil {
		_ = conn.Disconnect()
		t.failConnect(dev, err.Error())
		return
	}

	t.sink.HandleEvent(fleet.Connected{
		Device:      dev,
		Address:     dev.Address,
		Name:        dev.Name,
		Transmitter: t,
	})
	t.sink.HandleEvent(fleet.ReadyToReceive{Device: dev})
}

// attach discovers the peripheral service and characteristics and marks
// the session live.
func (t *transmitter) attach(conn bluetooth.Device) error {
	services, err := conn.DiscoverServices([]bluetooth.UUID{t.central.serviceUUID})
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return errServiceMissing
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{
		t.central.configUUID,
		t.central.dataUUID,
	})
	if err != nil {
		return err
	}
	if len(chars) < 2 {
		return errCharacteristicsMissing
	}

	// The session password is presented before the link counts as live; the
	// peripheral answers with its authentication events.
	if t.password != "" {
		auth, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{t.central.authUUID})
		if err != nil {
			return err
		}
		if len(auth) == 0 {
			return errCharacteristicsMissing
		}
		if _, err := auth[0].WriteWithoutResponse([]byte(t.password)); err != nil {
			return err
		}
	}

	t.mu.Lock()
	t.conn = conn
	t.configChar = chars[0]
	t.dataChar = chars[1]
	t.connected = true
	t.connecting = false
	t.mu.Unlock()
	return nil
}

func (t *transmitter) failConnect(dev *models.Device, message string) {
	t.mu.Lock()
	t.connecting = false
	t.mu.Unlock()
	t.central.logger.Warn("connection attempt failed",
		"device_address", dev.Address, "reason", message)
	t.sink.HandleEvent(fleet.TransmitterError{Device: dev, Message: message})
}

func (t *transmitter) Disconnect() {
	t.mu.Lock()
	connected := t.connected
	conn := t.conn
	dev := t.device
	t.connected = false
	t.mu.Unlock()

	if !connected {
		return
	}
	go func() {
		if err := conn.Disconnect(); err != nil {
			t.central.logger.Warn("disconnect failed", "error", err)
		}
		t.sink.HandleEvent(fleet.Disconnected{Device: dev})
	}()
}

// StartScan begins advertising discovery on the shared adapter. Each
// candidate whose advertisement carries the peripheral service is
// throttled per address, connected, and reported as an identity-less
// Connected event for the fleet manager to evaluate.
func (t *transmitter) StartScan() bool {
	t.mu.Lock()
	if t.scanning {
		t.mu.Unlock()
		return true
	}
	t.scanning = true
	t.mu.Unlock()

	go t.scanLoop()
	return true
}

func (t *transmitter) scanLoop() {
	err := scanWithRetry(
		func() error { return t.central.adapter.Scan(t.onScanResult) },
		func() bool {
			t.mu.Lock()
			defer t.mu.Unlock()
			return t.scanning
		},
		time.Sleep,
	)
	if err != nil {
		t.failScan(err)
	}
}

// scanWithRetry starts a scan, retrying while the previous scan session on
// the shared adapter drains its last callback. Returns nil when the scan ran
// to completion or was stopped mid-retry; returns the last error once the
// attempt budget is spent.
func scanWithRetry(scan func() error, active func() bool, sleep func(time.Duration)) error {
	var err error
	for attempt := 0; attempt < scanStartAttempts; attempt++ {
		if err = scan(); err == nil {
			return nil
		}
		if !active() {
			return nil
		}
		sleep(scanRetryDelay)
	}
	return err
}

// failScan reports a scan that could not run. The error reaches the manager
// as an event, not just a log line, so the dead session is observable.
func (t *transmitter) failScan(err error) {
	t.mu.Lock()
	t.scanning = false
	t.mu.Unlock()
	t.central.logger.Warn("scan terminated", "error", err)
	t.sink.HandleEvent(fleet.TransmitterError{Message: "scan: " + err.Error()})
}

func (t *transmitter) onScanResult(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
	if !result.AdvertisementPayload.HasServiceUUID(t.central.serviceUUID) {
		return
	}
	addr := models.NormalizeAddress(result.Address.String())
	if !t.central.limiter.Allow(addr, timeNow()) {
		return
	}

	// One candidate at a time. Stop scanning and hand the candidate to its
	// own goroutine so this callback returns and the adapter can finish
	// draining the scan before the manager starts the next one.
	if err := adapter.StopScan(); err != nil {
		t.central.logger.Warn("stop scan for candidate failed", "error", err)
	}
	t.mu.Lock()
	t.scanning = false
	t.mu.Unlock()

	go t.evaluateCandidate(result.Address, addr, result.LocalName())
}

func (t *transmitter) evaluateCandidate(target bluetooth.Address, addr, name string) {
	conn, err := t.central.adapter.Connect(target, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(t.central.timeout),
	})
	if err != nil {
		t.central.logger.Warn("candidate connect failed",
			"candidate_address", addr, "error", err)
		t.sink.HandleEvent(fleet.TransmitterError{Message: "candidate connect: " + err.Error()})
		return
	}
	if err := t.attach(conn); err != nil {
		_ = conn.Disconnect()
		t.central.logger.Warn("candidate attach failed",
			"candidate_address", addr, "error", err)
		return
	}

	t.sink.HandleEvent(fleet.Connected{
		Address:     addr,
		Name:        name,
		Transmitter: t,
	})
}

// StopScan cancels the active scan only; an in-flight candidate
// connection attempt keeps going.
func (t *transmitter) StopScan() {
	t.mu.Lock()
	scanning := t.scanning
	t.scanning = false
	t.mu.Unlock()

	if !scanning {
		return
	}
	if err := t.central.adapter.StopScan(); err != nil {
		t.central.logger.Warn("stop scan failed", "error", err)
	}
}

func (t *transmitter) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// BindDevice adopts the device record created for an onboarded candidate.
// The ready event is delivered asynchronously; the manager calls this
// under its lock.
func (t *transmitter) BindDevice(dev *models.Device) {
	t.mu.Lock()
	t.device = dev
	connected := t.connected
	t.mu.Unlock()

	if connected {
		go t.sink.HandleEvent(fleet.ReadyToReceive{Device: dev})
	}
}

func (t *transmitter) WriteConfigField(name, value string) bool {
	t.mu.Lock()
	connected := t.connected
	char := t.configChar
	t.mu.Unlock()

	if !connected {
		return false
	}
	if _, err := char.WriteWithoutResponse(encodeConfigField(name, value)); err != nil {
		t.central.logger.Warn("config field write failed", "field", name, "error", err)
		return false
	}
	return true
}

func (t *transmitter) WriteSample(sample models.Sample) bool {
	t.mu.Lock()
	connected := t.connected
	char := t.dataChar
	t.mu.Unlock()

	if !connected {
		return false
	}
	if _, err := char.WriteWithoutResponse(encodeSample(sample)); err != nil {
		t.central.logger.Warn("sample write failed", "error", err)
		return false
	}
	return true
}
