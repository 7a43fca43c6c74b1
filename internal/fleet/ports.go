package fleet

import "wristlink/go-fleet/pkg/models"

// Transmitter is the wireless transport capability for one peripheral, or
// for one discovery scan when constructed without a device. Connect,
// Disconnect and StartScan are fire-and-forget: outcomes arrive later as
// events on the EventSink the transmitter was constructed with. The
// returned booleans only report whether the attempt was accepted.
type Transmitter interface {
	Connect() bool
	Disconnect()
	StartScan() bool
	StopScan()
	Ready() bool
	WriteConfigField(name, value string) bool
	WriteSample(sample models.Sample) bool
}

// TransmitterFactory builds a transmitter bound to a device, or a transient
// scanning transmitter when device is nil. All transmitters deliver their
// events to sink.
type TransmitterFactory func(device *models.Device, sink EventSink, password string) Transmitter

// EventSink consumes transmitter events. The Manager is the only
// implementation in production.
type EventSink interface {
	HandleEvent(Event)
}

// DeviceBinder is implemented by transmitters that can adopt the device
// record created for a discovery candidate, so events after onboarding
// carry the device identity. Adoption must not deliver events
// synchronously; the manager calls it under its lock.
type DeviceBinder interface {
	BindDevice(dev *models.Device)
}

// DeviceStore persists device records. Implementations must treat Delete of
// an absent record as a no-op.
type DeviceStore interface {
	LoadAll() ([]*models.Device, error)
	Add(device *models.Device) error
	Delete(device *models.Device) error
	Persist() error
}

// ReadingSource yields recent data samples, newest first.
type ReadingSource interface {
	Latest(q models.ReadingQuery) []models.Sample
}
