package fleet

import (
	"testing"
	"time"

	"wristlink/go-fleet/pkg/models"
)

type fakeTransmitter struct {
	device          *models.Device
	password        string
	connectCalls    int
	disconnectCalls int
	scanStarts      int
	scanStops       int
	ready           bool
	failConfig      bool
	failSample      bool
	configWrites    []models.ConfigField
	samples         []models.Sample
	boundDevice     *models.Device
}

func (t *fakeTransmitter) Connect() bool   { t.connectCalls++; return true }
func (t *fakeTransmitter) Disconnect()     { t.disconnectCalls++ }
func (t *fakeTransmitter) StartScan() bool { t.scanStarts++; return true }
func (t *fakeTransmitter) StopScan()       { t.scanStops++ }
func (t *fakeTransmitter) Ready() bool     { return t.ready }

func (t *fakeTransmitter) WriteConfigField(name, value string) bool {
	if t.failConfig {
		return false
	}
	t.configWrites = append(t.configWrites, models.ConfigField{Name: name, Value: value})
	return true
}

func (t *fakeTransmitter) BindDevice(dev *models.Device) { t.boundDevice = dev }

func (t *fakeTransmitter) WriteSample(sample models.Sample) bool {
	if t.failSample {
		return false
	}
	t.samples = append(t.samples, sample)
	return true
}

type fakeFactory struct {
	created []*fakeTransmitter
}

func (f *fakeFactory) New(dev *models.Device, _ EventSink, password string) Transmitter {
	tx := &fakeTransmitter{device: dev, password: password}
	f.created = append(f.created, tx)
	return tx
}

// scanners returns the transmitters created without a device, in order.
func (f *fakeFactory) scanners() []*fakeTransmitter {
	var out []*fakeTransmitter
	for _, tx := range f.created {
		if tx.device == nil {
			out = append(out, tx)
		}
	}
	return out
}

type fakeStore struct {
	devices  []*models.Device
	added    []*models.Device
	deleted  []string
	persists int
}

func (s *fakeStore) LoadAll() ([]*models.Device, error) { return s.devices, nil }
func (s *fakeStore) Add(dev *models.Device) error       { s.added = append(s.added, dev); return nil }
func (s *fakeStore) Delete(dev *models.Device) error {
	s.deleted = append(s.deleted, models.NormalizeAddress(dev.Address))
	return nil
}
func (s *fakeStore) Persist() error { s.persists++; return nil }

type fakeReadings struct {
	samples []models.Sample // newest first
}

func (r *fakeReadings) Latest(q models.ReadingQuery) []models.Sample {
	var out []models.Sample
	for _, s := range r.samples {
		if !q.Since.IsZero() && s.Timestamp.Before(q.Since) {
			continue
		}
		if q.ExcludeRaw && s.Raw {
			continue
		}
		if q.ExcludeCalculated && s.Calculated {
			continue
		}
		out = append(out, s)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

type testEnv struct {
	manager  *Manager
	factory  *fakeFactory
	store    *fakeStore
	readings *fakeReadings
	now      time.Time
}

func newTestEnv(t *testing.T, stored ...*models.Device) *testEnv {
	t.Helper()
	env := &testEnv{
		factory:  &fakeFactory{},
		store:    &fakeStore{devices: stored},
		readings: &fakeReadings{},
		now:      time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	m, err := New(Options{
		Store:          env.store,
		Readings:       env.readings,
		NewTransmitter: env.factory.New,
		Clock:          func() time.Time { return env.now },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	env.manager = m
	return env
}

func device(addr string, shouldConnect bool) *models.Device {
	return &models.Device{
		Address:       addr,
		Name:          "watch-" + addr,
		ShouldConnect: shouldConnect,
		TextColor:     models.DefaultTextColor,
	}
}

func TestNewRequiresStoreAndFactory(t *testing.T) {
	if _, err := New(Options{NewTransmitter: (&fakeFactory{}).New}); err != ErrNoStore {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, err := New(Options{Store: &fakeStore{}}); err != ErrNoTransmitter {
		t.Fatalf("expected ErrNoTransmitter, got %v", err)
	}
}

func TestInitializeBindsOnlyShouldConnectDevices(t *testing.T) {
	auto := device("AA:BB", true)
	manual := device("CC:DD", false)
	env := newTestEnv(t, auto, manual)

	if len(env.factory.created) != 1 {
		t.Fatalf("transmitters created = %d, want 1", len(env.factory.created))
	}
	if env.factory.created[0].connectCalls != 1 {
		t.Fatalf("connect calls = %d, want 1", env.factory.created[0].connectCalls)
	}
	if env.manager.Binding(manual, false) != nil {
		t.Fatal("manual device must not get a binding at initialization")
	}
	if got := len(env.manager.List()); got != 2 {
		t.Fatalf("listed devices = %d, want 2 regardless of binding", got)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	dev := device("AA:BB", false)
	env := newTestEnv(t, dev)

	if !env.manager.Connect(dev) {
		t.Fatal("first connect should be accepted")
	}
	if !env.manager.Connect(dev) {
		t.Fatal("second connect should be accepted")
	}
	if len(env.factory.created) != 1 {
		t.Fatalf("transmitters created = %d, want exactly one binding", len(env.factory.created))
	}
	if env.factory.created[0].connectCalls != 2 {
		t.Fatalf("connect calls = %d, want 2 (idempotent at transmitter level)",
			env.factory.created[0].connectCalls)
	}
}

func TestDisconnectKeepsBinding(t *testing.T) {
	dev := device("AA:BB", true)
	env := newTestEnv(t, dev)

	if !env.manager.Disconnect(dev) {
		t.Fatal("disconnect with binding should report true")
	}
	if env.factory.created[0].disconnectCalls != 1 {
		t.Fatalf("disconnect calls = %d, want 1", env.factory.created[0].disconnectCalls)
	}
	if env.manager.Binding(dev, false) == nil {
		t.Fatal("binding must survive disconnect")
	}

	unbound := device("CC:DD", false)
	env.manager.MarkNeedsResync(unbound)
	if env.manager.Disconnect(unbound) {
		t.Fatal("disconnect without binding must be a no-op")
	}
}

func TestDeleteRemovesRegistryFlagsAndStore(t *testing.T) {
	dev := device("AA:BB", true)
	env := newTestEnv(t, dev)

	if err := env.manager.Delete(dev); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := len(env.manager.List()); got != 0 {
		t.Fatalf("listed devices after delete = %d, want 0", got)
	}
	if env.manager.Binding(dev, false) != nil {
		t.Fatal("binding must be removed on delete")
	}
	if len(env.store.deleted) != 1 || env.store.deleted[0] != "AA:BB" {
		t.Fatalf("store deletions = %v, want [AA:BB]", env.store.deleted)
	}
	if env.store.persists != 1 {
		t.Fatalf("persists = %d, want 1 (delete persists synchronously)", env.store.persists)
	}

	// Deleting again is a tolerated no-op.
	if err := env.manager.Delete(dev); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestMarkNeedsResyncToleratesUnknownDevice(t *testing.T) {
	env := newTestEnv(t)
	env.manager.MarkNeedsResync(device("FF:FF", false))
	env.manager.MarkNeedsResync(nil)
}

func TestSaveDelegatesToStore(t *testing.T) {
	env := newTestEnv(t)
	if err := env.manager.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if env.store.persists != 1 {
		t.Fatalf("persists = %d, want 1", env.store.persists)
	}
}

func TestBindingCreateIfAbsent(t *testing.T) {
	dev := device("AA:BB", false)
	env := newTestEnv(t, dev)

	if env.manager.Binding(dev, false) != nil {
		t.Fatal("expected no binding before create")
	}
	b := env.manager.Binding(dev, true)
	if b == nil {
		t.Fatal("expected binding to be created")
	}
	if env.factory.created[0].connectCalls != 1 {
		t.Fatal("creating a binding must initiate a connection")
	}
	if env.manager.Binding(dev, true) != b {
		t.Fatal("existing binding must be reused")
	}
}
