package zipkin

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/bellycard/zipkin-tracer/b3"
	"github.com/bellycard/zipkin-tracer/logging"
	"github.com/bellycard/zipkin-tracer/metrics"
	"github.com/bellycard/zipkin-tracer/tracing"
)

// Tracing stages, used to label discarded tracer failures.
const (
	stagePush       = "push"
	stageRPCName    = "rpc_name"
	stageServerRecv = "server_recv"
	stageRequest    = "request_annotations"
	stageServerSend = "server_send"
	stageError      = "error_annotation"
	stagePop        = "pop"
)

// Handler is the zipkin tracing middleware. It gives each request a B3
// TraceID, records the server receive and server send annotations around
// the wrapped handler and never lets a tracer failure reach the request.
type Handler struct {
	next     http.Handler
	config   Config
	endpoint Endpoint
	sampler  *b3.Sampler
	recorder Recorder
	closer   io.Closer
	gen      b3.IDGenerator
	logger   *logging.Logger
	metrics  *metrics.TracerMetrics
}

// NewHandler constructs the tracing middleware around next. The
// configuration is resolved from explicit, or from next when it implements
// ConfigProvider (see Resolve). An invalid configuration is the only error
// and is returned as a *ConfigError. A nil next answers 404 Not Found.
func NewHandler(next http.Handler, explicit interface{}, opts ...Option) (*Handler, error) {
	cfg, err := Resolve(explicit, next)
	if err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if next == nil {
		next = http.NotFoundHandler()
	}
	h := &Handler{
		next:     next,
		config:   cfg,
		endpoint: Endpoint{ServiceName: cfg.ServiceName, Port: cfg.ServicePort},
		sampler:  b3.NewSampler(cfg.SampleRate, o.source),
		recorder: o.recorder,
		gen:      o.generator,
		logger:   o.logger,
		metrics:  o.metrics,
	}
	if h.gen == nil {
		h.gen = b3.DefaultGenerator
	}
	if h.recorder == nil {
		tracer, closer, err := NewJaegerTracer(cfg, o.logger)
		if err != nil {
			return nil, err
		}
		h.recorder = NewOpenTracingRecorder(tracer)
		h.closer = closer
	}
	return h, nil
}

// NewMiddleware constructs the tracing middleware before the handler it
// wraps is known, for routers that chain func(http.Handler) http.Handler.
// Pass its Wrap method to the router; served directly the handler traces
// requests to http.NotFoundHandler.
func NewMiddleware(explicit interface{}, opts ...Option) (*Handler, error) {
	return NewHandler(nil, explicit, opts...)
}

// Wrap returns a handler tracing requests to next. It shares the
// configuration, sampler and recorder of h.
func (h *Handler) Wrap(next http.Handler) http.Handler {
	wrapped := *h
	wrapped.next = next
	return &wrapped
}

// Config returns the resolved configuration.
func (h *Handler) Config() Config {
	return h.config
}

// SampleRate returns the configured sample rate.
func (h *Handler) SampleRate() float64 {
	return h.sampler.Rate()
}

// Recorder returns the recorder spans are reported to.
func (h *Handler) Recorder() Recorder {
	return h.recorder
}

// Close flushes and closes the tracer created by NewHandler. It does nothing
// when the recorder was supplied with WithRecorder.
func (h *Handler) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := h.sampler.Resolve(b3.ExtractHTTP(r.Header, h.gen))

	ctx, slot := tracing.NewSlotContext(r.Context())
	slot.Set(id)
	completed := false
	defer func() {
		if !completed {
			// The application panicked. Close the span and let the panic through.
			h.guard(ctx, stageError, func() error {
				return h.recorder.Record(ctx, id, NewBinaryAnnotation(ErrorKey, "application panic", h.endpoint))
			})
			h.guard(ctx, stagePop, func() error { return h.recorder.Pop(ctx, id) })
		}
		slot.Clear()
	}()

	if h.logger != nil {
		ctx = logging.NewContext(ctx, h.logger)
	}
	ctx = logging.NewTraceContext(ctx, id.TraceID(), id.SpanID())
	sampled, _ := id.Sampled()
	h.metrics.ObserveRequest(sampled)

	h.recordReceive(ctx, id, r)

	rw := tracing.NewResponseWriter(w)
	h.next.ServeHTTP(rw, r.WithContext(ctx))
	completed = true

	h.recordSend(ctx, id, rw.StatusCode())
}

func (h *Handler) recordReceive(ctx context.Context, id b3.TraceID, r *http.Request) {
	h.guard(ctx, stagePush, func() error { return h.recorder.Push(ctx, id) })
	h.guard(ctx, stageRPCName, func() error { return h.recorder.SetRPCName(ctx, id, r.Method) })
	h.guard(ctx, stageServerRecv, func() error {
		return h.recorder.Record(ctx, id, NewAnnotation(ServerRecv, h.endpoint))
	})
	h.guard(ctx, stageRequest, func() error {
		if err := h.recorder.Record(ctx, id, NewBinaryAnnotation(HTTPURIKey, r.URL.Path, h.endpoint)); err != nil {
			return err
		}
		if len(r.URL.RawQuery) > 0 {
			if err := h.recorder.Record(ctx, id, NewBinaryAnnotation(HTTPQueryKey, r.URL.RawQuery, h.endpoint)); err != nil {
				return err
			}
		}
		if len(r.RemoteAddr) > 0 {
			return h.recorder.Record(ctx, id, NewBinaryAnnotation(PeerAddressKey, r.RemoteAddr, h.endpoint))
		}
		return nil
	})
}

func (h *Handler) recordSend(ctx context.Context, id b3.TraceID, statusCode int) {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	h.guard(ctx, stageServerSend, func() error {
		if err := h.recorder.Record(ctx, id, NewBinaryAnnotation(HTTPStatusCodeKey, strconv.Itoa(statusCode), h.endpoint)); err != nil {
			return err
		}
		return h.recorder.Record(ctx, id, NewAnnotation(ServerSend, h.endpoint))
	})
	h.guard(ctx, stagePop, func() error { return h.recorder.Pop(ctx, id) })
}

// guard runs one tracer call. Errors and panics are logged, counted and
// discarded.
func (h *Handler) guard(ctx context.Context, stage string, fn func() error) {
	defer func() {
		if rerr := recover(); rerr != nil {
			h.discard(ctx, stage, errors.Errorf("tracer panic: %v", rerr))
		}
	}()
	if err := fn(); err != nil {
		h.discard(ctx, stage, err)
	}
}

func (h *Handler) discard(ctx context.Context, stage string, err error) {
	h.metrics.ObserveTracerError(stage)
	if log := logging.From(ctx); log != nil {
		log.Warn("Discarded tracer failure", "stage", stage, logging.ErrorKey, err)
	}
}
