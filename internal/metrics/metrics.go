// Package metrics exposes fleet counters via prometheus. All methods are
// safe on a nil receiver so the core can run uninstrumented in tests.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeOK          = "ok"
	OutcomeFailed      = "failed"
	OutcomeDelivered   = "delivered"
	OutcomeUndelivered = "undelivered"
	OutcomeStale       = "stale"
)

type Fleet struct {
	connectsInitiated   prometheus.Counter
	scansStarted        prometheus.Counter
	duplicateCandidates prometheus.Counter
	devicesOnboarded    prometheus.Counter
	configPushes        *prometheus.CounterVec
	samplePushes        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Fleet {
	f := &Fleet{
		connectsInitiated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_connects_initiated_total",
			Help: "Connection attempts initiated for bound devices.",
		}),
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_scans_started_total",
			Help: "Discovery scans started, including duplicate-triggered restarts.",
		}),
		duplicateCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_duplicate_candidates_total",
			Help: "Discovered candidates dropped because the address was already known.",
		}),
		devicesOnboarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_devices_onboarded_total",
			Help: "New devices registered through discovery.",
		}),
		configPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_config_pushes_total",
			Help: "Configuration resync attempts by outcome.",
		}, []string{"outcome"}),
		samplePushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_sample_pushes_total",
			Help: "Data sample push attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			f.connectsInitiated,
			f.scansStarted,
			f.duplicateCandidates,
			f.devicesOnboarded,
			f.configPushes,
			f.samplePushes,
		)
	}
	return f
}

func (f *Fleet) ConnectInitiated() {
	if f == nil {
		return
	}
	f.connectsInitiated.Inc()
}

func (f *Fleet) ScanStarted() {
	if f == nil {
		return
	}
	f.scansStarted.Inc()
}

func (f *Fleet) DuplicateCandidate() {
	if f == nil {
		return
	}
	f.duplicateCandidates.Inc()
}

func (f *Fleet) DeviceOnboarded() {
	if f == nil {
		return
	}
	f.devicesOnboarded.Inc()
}

func (f *Fleet) ConfigPush(outcome string) {
	if f == nil {
		return
	}
	f.configPushes.WithLabelValues(outcome).Inc()
}

func (f *Fleet) SamplePush(outcome string) {
	if f == nil {
		return
	}
	f.samplePushes.WithLabelValues(outcome).Inc()
}
