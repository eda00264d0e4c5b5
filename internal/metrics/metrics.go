// Package metrics exposes adapter health and fetch counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nhle/change-adapter/internal/model"
)

const namespace = "changeadapter"

// Metrics holds the collectors for all adapter instances.
type Metrics struct {
	registry *prometheus.Registry

	HealthchecksTotal   *prometheus.CounterVec
	InstanceUp          *prometheus.GaugeVec
	RecordsFetchedTotal *prometheus.CounterVec
	FetchErrorsTotal    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a private
// registry, together with the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.HealthchecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "healthchecks_total",
			Help:      "Health checks by instance and emitted status",
		},
		[]string{"instance", "status"},
	)

	m.InstanceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instance_up",
			Help:      "1 if the last emitted status was ONLINE, 0 if OFFLINE",
		},
		[]string{"instance"},
	)

	m.RecordsFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Change tickets normalized from successful fetches",
		},
		[]string{"instance"},
	)

	m.FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed fetches by instance and error kind",
		},
		[]string{"instance", "kind"},
	)

	m.registry.MustRegister(
		m.HealthchecksTotal,
		m.InstanceUp,
		m.RecordsFetchedTotal,
		m.FetchErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveStatus records an emitted ONLINE/OFFLINE event.
func (m *Metrics) ObserveStatus(instanceID string, status model.Status) {
	m.HealthchecksTotal.WithLabelValues(instanceID, string(status)).Inc()

	up := 0.0
	if status == model.StatusOnline {
		up = 1
	}
	m.InstanceUp.WithLabelValues(instanceID).Set(up)
}

// ObserveRecords adds n fetched records for an instance.
func (m *Metrics) ObserveRecords(instanceID string, n int) {
	m.RecordsFetchedTotal.WithLabelValues(instanceID).Add(float64(n))
}

// ObserveError counts a failed fetch of the given kind
// ("auth", "malformed", "transport").
func (m *Metrics) ObserveError(instanceID, kind string) {
	m.FetchErrorsTotal.WithLabelValues(instanceID, kind).Inc()
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
