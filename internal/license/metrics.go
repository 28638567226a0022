package license

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for license verification.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	verifications *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	staleServed   prometheus.Counter
	decisions     *prometheus.CounterVec
	licenseValid  prometheus.Gauge
}

// NewMetrics creates and registers license metrics with the given registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamdesk_license_verifications_total",
			Help: "Total number of license verification attempts by outcome",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamdesk_license_cache_lookups_total",
			Help: "Total number of license status lookups by cache result",
		}, []string{"result"}),
		staleServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamdesk_license_stale_served_total",
			Help: "Total number of times a stale result was served after a failed refresh",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamdesk_license_feature_decisions_total",
			Help: "Total number of feature checks by feature and decision",
		}, []string{"feature", "allowed"}),
		licenseValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamdesk_license_valid",
			Help: "Whether the most recently stored verification result is valid (1) or not (0)",
		}),
	}

	registerer.MustRegister(
		m.verifications,
		m.cacheLookups,
		m.staleServed,
		m.decisions,
		m.licenseValid,
	)

	return m
}

func (m *Metrics) verification(err error) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(errorKind(err)).Inc()
}

func (m *Metrics) cacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) cacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) stale() {
	if m == nil {
		return
	}
	m.staleServed.Inc()
}

func (m *Metrics) decision(feature string, allowed bool) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(feature, strconv.FormatBool(allowed)).Inc()
}

func (m *Metrics) stored(r VerificationResult) {
	if m == nil {
		return
	}
	if r.Valid {
		m.licenseValid.Set(1)
	} else {
		m.licenseValid.Set(0)
	}
}
