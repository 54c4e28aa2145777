package flowpager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess   = "success"
	resultError     = "error"
	resultCancelled = "cancelled"
	resultDropped   = "dropped"
)

// Metrics records pager activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	LoadsTotal        *prometheus.CounterVec
	LoadDuration      *prometheus.HistogramVec
	EvictedItemsTotal *prometheus.CounterVec
	WindowItems       prometheus.Gauge
}

// NewMetrics registers pager metrics with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loads_total",
				Help:      "Total number of page loads by direction and result",
			},
			[]string{"direction", "result"},
		),

		LoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "load_duration_seconds",
				Help:      "Page load duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"direction"},
		),

		EvictedItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evicted_items_total",
				Help:      "Total number of items evicted from the window, by growth direction",
			},
			[]string{"direction"},
		),

		WindowItems: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "window_items",
				Help:      "Current number of items retained in the window",
			},
		),
	}
}

func (m *Metrics) RecordLoad(direction LoadDirection, result string, duration time.Duration) {
	if m == nil {
		return
	}

	m.LoadsTotal.WithLabelValues(direction.String(), result).Inc()
	m.LoadDuration.WithLabelValues(direction.String()).Observe(duration.Seconds())
}

func (m *Metrics) RecordEviction(direction LoadDirection, evicted int) {
	if m == nil || evicted == 0 {
		return
	}

	m.EvictedItemsTotal.WithLabelValues(direction.String()).Add(float64(evicted))
}

func (m *Metrics) SetWindowItems(n int) {
	if m == nil {
		return
	}

	m.WindowItems.Set(float64(n))
}
