package zipkin

import (
	"math/rand"

	"github.com/bellycard/zipkin-tracer/b3"
	"github.com/bellycard/zipkin-tracer/logging"
	"github.com/bellycard/zipkin-tracer/metrics"
)

type options struct {
	recorder  Recorder
	generator b3.IDGenerator
	source    rand.Source
	logger    *logging.Logger
	metrics   *metrics.TracerMetrics
}

// Option is used to override defaults when creating a new Handler
type Option func(*options)

// WithRecorder sets the recorder spans are reported to. By default an
// OpenTracingRecorder on a jaeger tracer built from the Config is used.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if o != nil {
			o.recorder = r
		}
	}
}

// WithIDGenerator sets the generator for the ids of new root traces.
func WithIDGenerator(g b3.IDGenerator) Option {
	return func(o *options) {
		if o != nil {
			o.generator = g
		}
	}
}

// WithRandSource sets the random source of the sampler. Tests use a seeded
// source to get deterministic sampling decisions.
func WithRandSource(src rand.Source) Option {
	return func(o *options) {
		if o != nil {
			o.source = src
		}
	}
}

// WithLogger sets the parent logger for the request trace loggers and for
// tracer failures. By default the logger found in the request context is
// used.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if o != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics the handler reports to.
func WithMetrics(m *metrics.TracerMetrics) Option {
	return func(o *options) {
		if o != nil {
			o.metrics = m
		}
	}
}
