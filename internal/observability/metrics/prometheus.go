// Package metrics provides Prometheus metrics for the document pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	ValidationsPerformed  *prometheus.CounterVec
	DocumentsCreated      *prometheus.CounterVec
	DocumentsRendered     prometheus.Counter
	DocumentsSigned       prometheus.Counter
	DeliveryAttempts      *prometheus.CounterVec
	RenderDuration        prometheus.Histogram
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	OutboxPending         prometheus.Gauge
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		ValidationsPerformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prescription_validations_total",
			Help: "Prescription validations by outcome",
		}, []string{"valid"}),
		DocumentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "documents_created_total",
			Help: "Documents created by kind",
		}, []string{"kind"}),
		DocumentsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "documents_rendered_total",
			Help: "Total PDF documents rendered",
		}),
		DocumentsSigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "documents_signed_total",
			Help: "Total documents digitally signed",
		}),
		DeliveryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Document delivery attempts by channel and outcome",
		}, []string{"channel", "success"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "document_render_duration_seconds",
			Help:    "PDF render duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
	}

	prometheus.MustRegister(
		m.ValidationsPerformed,
		m.DocumentsCreated,
		m.DocumentsRendered,
		m.DocumentsSigned,
		m.DeliveryAttempts,
		m.RenderDuration,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
