// Package metrics holds the Prometheus instruments of the store, the sync
// adapter and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so New can be called more than once (e.g. in tests).
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	storeOps        *prometheus.CounterVec
	documentBytes   prometheus.Gauge
	syncOps         *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	requestDuration *prometheus.HistogramVec
}

// New creates the registry and registers every instrument in it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		storeOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincontrol_store_operations_total",
				Help: "Local store operations by operation and result.",
			},
			[]string{"operation", "result"},
		),
		documentBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fincontrol_document_bytes",
				Help: "Size of the last persisted document.",
			},
		),
		syncOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincontrol_sync_operations_total",
				Help: "Cloud sync operations by operation and result.",
			},
			[]string{"operation", "result"},
		),
		syncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincontrol_sync_duration_seconds",
				Help:    "Duration of cloud sync operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincontrol_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// StoreOp counts one local store operation.
func (m *Metrics) StoreOp(op string, err error) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(op, result(err)).Inc()
}

// DocumentSize records the size of the persisted document.
func (m *Metrics) DocumentSize(n int) {
	if m == nil {
		return
	}
	m.documentBytes.Set(float64(n))
}

// SyncOp counts one cloud sync operation and its duration.
func (m *Metrics) SyncOp(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.syncOps.WithLabelValues(op, result(err)).Inc()
	m.syncDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Request records one HTTP request.
func (m *Metrics) Request(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
