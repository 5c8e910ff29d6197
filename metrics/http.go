package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bellycard/zipkin-tracer/tracing"
)

// MetricsPath is the path the metrics endpoint is served on.
const MetricsPath = "/service/metrics"

// HTTPMetrics observes http request latencies.
type HTTPMetrics struct {
	requestsActive   *prometheus.GaugeVec
	requestDurations *prometheus.HistogramVec
}

// NewHTTPMetrics creates the http metrics and registers them with reg. A nil
// reg registers with the default Prometheus registry.
func NewHTTPMetrics(namespace string, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTPMetrics{
		requestsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "The count of current active http requests, partitioned by method",
			},
			[]string{"method"}),
		requestDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_requests_durations_histogram_seconds",
				Help:      "Http request latency distributions, partitioned by method, statusCode and sampling decision",
				Buckets:   prometheus.DefBuckets},
			[]string{"method", "statusCode", "sampled"}),
	}
	reg.MustRegister(m.requestsActive, m.requestDurations)
	return m
}

// httpAccessHandler provides http middleware to observe
// http metrics
type httpAccessHandler struct {
	metrics *HTTPMetrics
	next    http.Handler
}

// NewHTTPAccessHandler constructs a new middleware instance for observing
// http metrics. Register it inside the zipkin middleware so the sampling
// decision of the request is known.
func (m *HTTPMetrics) NewHTTPAccessHandler(next http.Handler) http.Handler {
	return &httpAccessHandler{metrics: m, next: next}
}

func (h *httpAccessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := tracing.NewResponseWriter(w)
	active := h.metrics.requestsActive.WithLabelValues(r.Method)
	active.Inc()
	defer active.Dec()

	start := time.Now()
	h.next.ServeHTTP(rw, r)
	duration := time.Since(start)

	sampled := false
	if id, ok := tracing.TraceIDFrom(r.Context()); ok {
		sampled, _ = id.Sampled()
	}
	statusCode := rw.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	h.metrics.requestDurations.
		WithLabelValues(r.Method, strconv.Itoa(statusCode), strconv.FormatBool(sampled)).
		Observe(duration.Seconds())
}

// prometheusHandler provides http middleware for serving the metrics endpoint
type prometheusHandler struct {
	prom http.Handler
	next http.Handler
}

// NewPrometheusHandler constructs a new middleware instance for serving
// the Prometheus metrics endpoint from gatherer on MetricsPath. A nil
// gatherer serves the default Prometheus registry.
func NewPrometheusHandler(gatherer prometheus.Gatherer) func(http.Handler) http.Handler {
	prom := promhttp.Handler()
	if gatherer != nil {
		prom = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return func(next http.Handler) http.Handler {
		return &prometheusHandler{prom: prom, next: next}
	}
}

func (p *prometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == MetricsPath {
		p.prom.ServeHTTP(w, r)
	} else {
		p.next.ServeHTTP(w, r)
	}
}
