// Package monitoring exposes Prometheus metrics for the telemetry pipeline.
// Telemetry loss is silent by default, so the counters here (and the drop
// counter surfaced through the public API) are the way operators observe it.
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as label values on EventsDropped.
const (
	ReasonOverflow  = "overflow"
	ReasonPermanent = "permanent"
	ReasonExhausted = "retry_exhausted"
	ReasonInternal  = "internal"
)

// Metrics holds the pipeline's Prometheus metrics.
type Metrics struct {
	EventsEnqueued  prometheus.Counter
	EventsDropped   *prometheus.CounterVec
	EventsDelivered prometheus.Counter
	BatchesSent     prometheus.Counter
	BatchBytes      prometheus.Histogram
	DeliverySeconds prometheus.Histogram
	QueueDepth      prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the metrics registered on the default Prometheus registry.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates pipeline metrics registered on the given registerer. Tests pass
// their own registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "arclight_events_enqueued_total",
			Help: "Total events accepted into the delivery queue",
		}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arclight_events_dropped_total",
			Help: "Total events lost, by reason",
		}, []string{"reason"}),
		EventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "arclight_events_delivered_total",
			Help: "Total events acknowledged by the ingestion endpoint",
		}),
		BatchesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "arclight_batches_sent_total",
			Help: "Total batches transmitted, including retried batches once",
		}),
		BatchBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arclight_batch_bytes",
			Help:    "Serialized batch size in bytes before compression",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		}),
		DeliverySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arclight_delivery_duration_seconds",
			Help:    "Wall time per batch delivery including retries",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arclight_queue_depth",
			Help: "Events currently buffered in the delivery queue",
		}),
	}
}
