package zipkin

import (
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	jaeger "github.com/uber/jaeger-client-go"
	zipkintransport "github.com/uber/jaeger-client-go/transport/zipkin"
	jaegerzipkin "github.com/uber/jaeger-client-go/zipkin"

	"github.com/bellycard/zipkin-tracer/logging"
)

// collectorPath is the Zipkin v1 span intake path.
const collectorPath = "/api/v1/spans"

// NewJaegerTracer creates an OpenTracing tracer for cfg. The tracer joins B3
// contexts and shares the RPC span with the caller, as Zipkin does. When
// cfg.CollectorAddress is set spans are reported to that Zipkin collector,
// otherwise they are written to logger.
func NewJaegerTracer(cfg Config, logger *logging.Logger) (opentracing.Tracer, io.Closer, error) {
	if logger == nil {
		logger = logging.Global()
	}
	jlogger := newJaegerLogger(logger.With(logging.ComponentKey, "zipkin-reporter"))

	var reporter jaeger.Reporter
	if len(cfg.CollectorAddress) > 0 {
		endpoint, err := collectorURL(cfg.CollectorAddress)
		if err != nil {
			return nil, nil, err
		}
		transport, err := zipkintransport.NewHTTPTransport(endpoint, zipkintransport.HTTPLogger(jlogger))
		if err != nil {
			return nil, nil, errors.Wrap(err, "zipkin: create collector transport")
		}
		reporter = jaeger.NewRemoteReporter(transport, jaeger.ReporterOptions.Logger(jlogger))
	} else {
		reporter = jaeger.NewLoggingReporter(jlogger)
	}

	propagator := jaegerzipkin.NewZipkinB3HTTPHeaderPropagator()
	tracer, closer := jaeger.NewTracer(cfg.ServiceName,
		jaeger.NewConstSampler(true),
		reporter,
		jaeger.TracerOptions.Logger(jlogger),
		jaeger.TracerOptions.Injector(opentracing.HTTPHeaders, propagator),
		jaeger.TracerOptions.Extractor(opentracing.HTTPHeaders, propagator),
		jaeger.TracerOptions.Injector(opentracing.TextMap, propagator),
		jaeger.TracerOptions.Extractor(opentracing.TextMap, propagator),
		jaeger.TracerOptions.ZipkinSharedRPCSpan(true),
		jaeger.TracerOptions.Tag("service.port", cfg.ServicePort))
	return tracer, closer, nil
}

// collectorURL turns a collector address into the span intake URL. A bare
// host:port is reported to over http.
func collectorURL(address string) (string, error) {
	if !strings.Contains(address, "://") {
		host, port, err := net.SplitHostPort(address)
		if err != nil {
			return "", &ConfigError{Field: "collector_address", Reason: "must be a URL or host:port", Err: err}
		}
		if _, err := strconv.Atoi(port); err != nil {
			return "", &ConfigError{Field: "collector_address", Reason: "has an invalid port", Err: err}
		}
		return "http://" + net.JoinHostPort(host, port) + collectorPath, nil
	}
	u, err := url.Parse(address)
	if err != nil || len(u.Host) == 0 {
		return "", &ConfigError{Field: "collector_address", Reason: "must be a URL or host:port", Err: err}
	}
	if len(u.Path) == 0 || u.Path == "/" {
		u.Path = collectorPath
	}
	return u.String(), nil
}
