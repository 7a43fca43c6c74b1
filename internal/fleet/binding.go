package fleet

import "wristlink/go-fleet/pkg/models"

// Binding is the live session object pairing a device with its transmitter.
// At most one binding exists per device; it survives disconnects and is
// reused on reconnect.
type Binding struct {
	device *models.Device
	tx     Transmitter
}

func newBinding(device *models.Device, tx Transmitter) *Binding {
	return &Binding{device: device, tx: tx}
}

func (b *Binding) Device() *models.Device {
	return b.device
}

// Connect asks the transmitter to (re)connect. Idempotent at the
// transmitter level: connecting an already-connected session is a no-op.
func (b *Binding) Connect() bool {
	return b.tx.Connect()
}

// Disconnect tears down the live connection but keeps the binding so a
// later Connect is cheap.
func (b *Binding) Disconnect() {
	b.tx.Disconnect()
}

func (b *Binding) Ready() bool {
	return b.tx.Ready()
}

// pushConfig writes fields in order, aborting on the first failure. The
// caller keeps the resync flag set unless every field was written.
func (b *Binding) pushConfig(fields []models.ConfigField) bool {
	for _, f := range fields {
		if !b.tx.WriteConfigField(f.Name, f.Value) {
			return false
		}
	}
	return true
}

func (b *Binding) pushSample(sample models.Sample) bool {
	return b.tx.WriteSample(sample)
}
