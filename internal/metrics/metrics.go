package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "farmfleet"

// Metrics groups the process counters. A fresh registry per instance keeps
// tests independent of the global default registry.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	QRCodesCreated      prometheus.Counter
	Allocations         *prometheus.CounterVec
	Bindings            *prometheus.CounterVec
	BatchTransitions    *prometheus.CounterVec
	DeliveryTransitions *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		QRCodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qr_codes_created_total",
			Help:      "QR codes minted, standalone or in production batches.",
		}),
		Allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qr_allocations_total",
			Help:      "Per-code allocation attempts by result.",
		}, []string{"result"}),
		Bindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qr_bindings_total",
			Help:      "Bind and unbind operations.",
		}, []string{"action"}),
		BatchTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_transitions_total",
			Help:      "Production batch status transitions by target status.",
		}, []string{"to"}),
		DeliveryTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_transitions_total",
			Help:      "Delivery batch status transitions by target status.",
		}, []string{"to"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		m.HTTPRequests,
		m.HTTPDuration,
		m.QRCodesCreated,
		m.Allocations,
		m.Bindings,
		m.BatchTransitions,
		m.DeliveryTransitions,
	)
	return m
}
