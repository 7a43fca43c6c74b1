package fleet

import (
	"wristlink/go-fleet/internal/notify"
	"wristlink/go-fleet/pkg/models"
)

// Event is the tagged variant type for inbound transmitter events. One
// struct exists per event the hardware layer can report; the Manager routes
// all of them through HandleEvent.
type Event interface {
	fleetEvent()
}

// ReadyToReceive signals the peripheral accepts writes. It triggers the
// config resync check followed by a data push attempt.
type ReadyToReceive struct {
	Device *models.Device
}

// Connected reports an established connection. Device is nil when the
// connection came out of a discovery scan; Address and Name then describe
// the candidate and Transmitter is the live, already-connected instance.
type Connected struct {
	Device      *models.Device
	Address     string
	Name        string
	Transmitter Transmitter
}

type Disconnected struct {
	Device *models.Device
}

// RadioStateChanged reports the host radio being powered on or off.
type RadioStateChanged struct {
	Powered bool
}

type TransmitterError struct {
	Device  *models.Device
	Message string
}

// NewPassword carries a session password issued by the peripheral; it is
// persisted onto the device record immediately.
type NewPassword struct {
	Device   *models.Device
	Password string
}

type AuthenticationResult struct {
	Device  *models.Device
	Success bool
}

type PasswordMissing struct {
	Device *models.Device
}

type ResetRequired struct {
	Device *models.Device
}

func (ReadyToReceive) fleetEvent()       {}
func (Connected) fleetEvent()            {}
func (Disconnected) fleetEvent()         {}
func (RadioStateChanged) fleetEvent()    {}
func (TransmitterError) fleetEvent()     {}
func (NewPassword) fleetEvent()          {}
func (AuthenticationResult) fleetEvent() {}
func (PasswordMissing) fleetEvent()      {}
func (ResetRequired) fleetEvent()        {}

var _ EventSink = (*Manager)(nil)

// HandleEvent is the single dispatcher for transmitter events. It takes the
// manager lock, so hardware adapters must deliver events from their own
// goroutines, never from inside a manager call.
func (m *Manager) HandleEvent(ev Event) {
	m.mu.Lock()
	var after func()
	switch e := ev.(type) {
	case ReadyToReceive:
		m.handleReadyLocked(e.Device)
	case Connected:
		after = m.handleConnectedLocked(e)
	case Disconnected:
		m.logger.Info("device disconnected", "device_address", eventAddress(e.Device))
	case RadioStateChanged:
		m.logger.Info("radio state changed", "powered", e.Powered)
	case TransmitterError:
		m.logger.Warn("transmitter error",
			"device_address", eventAddress(e.Device), "error_message", e.Message)
		m.notifications.Publish(notify.KindTransmitterErr, e.Message)
	case NewPassword:
		m.handleNewPasswordLocked(e)
	case AuthenticationResult:
		m.logger.Info("authentication result",
			"device_address", eventAddress(e.Device), "success", e.Success)
		m.notifications.Publish(notify.KindAuthResult, authResultPayload(e))
	case PasswordMissing:
		m.logger.Warn("device password missing", "device_address", eventAddress(e.Device))
		m.notifications.Publish(notify.KindPasswordMissing, eventAddress(e.Device))
	case ResetRequired:
		m.logger.Warn("device reset required", "device_address", eventAddress(e.Device))
		m.notifications.Publish(notify.KindResetRequired, eventAddress(e.Device))
	default:
		m.logger.Warn("unhandled transmitter event")
	}
	m.mu.Unlock()

	if after != nil {
		after()
	}
}

func (m *Manager) handleNewPasswordLocked(e NewPassword) {
	if e.Device == nil {
		return
	}
	e.Device.BLEPassword = e.Password
	if err := m.store.Persist(); err != nil {
		m.logger.Error("persist device password failed",
			"device_address", eventAddress(e.Device), "error", err)
		return
	}
	m.logger.Info("device password updated", "device_address", eventAddress(e.Device))
}

func eventAddress(dev *models.Device) string {
	if dev == nil {
		return ""
	}
	return dev.Address
}

type AuthResultPayload struct {
	Address string `json:"address"`
	Success bool   `json:"success"`
}

func authResultPayload(e AuthenticationResult) AuthResultPayload {
	return AuthResultPayload{Address: eventAddress(e.Device), Success: e.Success}
}
