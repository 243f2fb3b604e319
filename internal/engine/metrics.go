package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional Prometheus export, additive to the in-process
// latency.Meter ring that backs GetLatencyStats. An Engine with no
// Metrics configured works exactly the same; this only gives an
// external scraper a window into the same operations.
type Metrics struct {
	opLatency   *prometheus.HistogramVec
	tradesTotal prometheus.Counter
	volumeTotal prometheus.Counter
}

// NewMetrics builds a fresh, unregistered set of collectors scoped to
// symbol. The caller is responsible for registering Collectors() with
// whatever prometheus.Registerer it uses; a library should never touch
// the default global registry on its own.
func NewMetrics(symbol string) *Metrics {
	labels := prometheus.Labels{"symbol": symbol}
	return &Metrics{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "ironbook",
			Subsystem:   "engine",
			Name:        "operation_latency_seconds",
			Help:        "Latency of matching engine public operations.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"operation"}),
		tradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ironbook",
			Subsystem:   "engine",
			Name:        "trades_total",
			Help:        "Total number of trades executed by this engine.",
			ConstLabels: labels,
		}),
		volumeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ironbook",
			Subsystem:   "engine",
			Name:        "traded_volume_total",
			Help:        "Cumulative traded quantity for this engine.",
			ConstLabels: labels,
		}),
	}
}

// Collectors returns every collector so the caller can
// registerer.MustRegister(m.Collectors()...), with m from NewMetrics.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.opLatency, m.tradesTotal, m.volumeTotal}
}

func (m *Metrics) observeLatency(op string, d time.Duration) {
	m.opLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) observeTrade(quantity float64) {
	m.tradesTotal.Inc()
	m.volumeTotal.Add(quantity)
}
