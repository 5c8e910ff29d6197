package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// TracerMetrics counts the outcomes of the zipkin middleware.
type TracerMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// NewTracerMetrics creates the tracer metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewTracerMetrics(namespace string, reg prometheus.Registerer) *TracerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &TracerMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "zipkin",
				Name:      "requests_total",
				Help:      "The count of traced requests, partitioned by sampling decision",
			},
			[]string{"sampled"}),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "zipkin",
				Name:      "tracer_errors_total",
				Help:      "The count of discarded tracer failures, partitioned by the tracing stage that failed",
			},
			[]string{"stage"}),
	}
	reg.MustRegister(m.requests, m.errors)
	return m
}

// ObserveRequest counts a traced request. It is a no-op on a nil receiver.
func (m *TracerMetrics) ObserveRequest(sampled bool) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strconv.FormatBool(sampled)).Inc()
}

// ObserveTracerError counts a tracer failure in stage. It is a no-op on a nil
// receiver.
func (m *TracerMetrics) ObserveTracerError(stage string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(stage).Inc()
}
