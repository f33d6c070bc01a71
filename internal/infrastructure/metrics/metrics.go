// Package metrics exposes Prometheus collectors for the watch session and
// the stores.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/watch"
)

var _ watch.Recorder = (*Metrics)(nil)

const namespace = "batterystock"

// Metrics holds all collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	NotificationsEmitted *prometheus.CounterVec
	CheckFailures        *prometheus.CounterVec
	ChangefeedEvents     *prometheus.CounterVec
	TxRetries            *prometheus.CounterVec
	NotifiedKeysGauge    *prometheus.GaugeVec
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.NotificationsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_emitted_total",
			Help:      "Total number of notifications emitted",
		},
		[]string{"kind"},
	)

	m.CheckFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_check_failures_total",
			Help:      "Total number of watcher checks that failed",
		},
		[]string{"watcher"},
	)

	m.ChangefeedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changefeed_events_total",
			Help:      "Total number of change feed events received",
		},
		[]string{"collection", "initial"},
	)

	m.TxRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_tx_retries_total",
			Help:      "Total number of store transactions re-run after a conflict",
		},
		[]string{"backend"},
	)

	m.NotifiedKeysGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_notified_keys",
			Help:      "Number of keys currently in a watcher's notified set",
		},
		[]string{"watcher"},
	)

	registry.MustRegister(
		m.NotificationsEmitted,
		m.CheckFailures,
		m.ChangefeedEvents,
		m.TxRetries,
		m.NotifiedKeysGauge,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// NotificationEmitted implements watch.Recorder.
func (m *Metrics) NotificationEmitted(kind string) {
	m.NotificationsEmitted.WithLabelValues(kind).Inc()
}

// CheckFailed implements watch.Recorder.
func (m *Metrics) CheckFailed(watcher string) {
	m.CheckFailures.WithLabelValues(watcher).Inc()
}

// EventsReceived implements watch.Recorder.
func (m *Metrics) EventsReceived(coll changefeed.Collection, initial bool, n int) {
	m.ChangefeedEvents.WithLabelValues(string(coll), strconv.FormatBool(initial)).Add(float64(n))
}

// NotifiedKeys implements watch.Recorder.
func (m *Metrics) NotifiedKeys(watcher string, n int) {
	m.NotifiedKeysGauge.WithLabelValues(watcher).Set(float64(n))
}

// TxRetryHook returns an OnRetry callback counting retries of backend.
func (m *Metrics) TxRetryHook(backend string) func(err error) {
	counter := m.TxRetries.WithLabelValues(backend)
	return func(error) { counter.Inc() }
}
