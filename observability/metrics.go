package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SwapMetrics records settlement operation activity served over RPC.
type SwapMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	swapMetricsOnce sync.Once
	swapRegistry    *SwapMetrics
)

// Swap returns the lazily-initialised settlement metrics registry.
func Swap() *SwapMetrics {
	swapMetricsOnce.Do(func() {
		swapRegistry = &SwapMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crossfill",
				Subsystem: "swap",
				Name:      "operations_total",
				Help:      "Total settlement operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "crossfill",
				Subsystem: "swap",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for settlement operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(swapRegistry.operations, swapRegistry.latency)
	})
	return swapRegistry
}

// Observe records one settlement operation invocation.
func (m *SwapMetrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
