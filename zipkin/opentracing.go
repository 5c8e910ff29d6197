package zipkin

import (
	"context"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/bellycard/zipkin-tracer/b3"
	"github.com/bellycard/zipkin-tracer/tracing"
)

var errUnknownSpan = errors.New("zipkin: span was not pushed")

// spanKey identifies an in-flight span. slot is nil for contexts that do not
// belong to a traced request.
type spanKey struct {
	slot    *tracing.Slot
	traceID string
	spanID  string
}

func keyOf(ctx context.Context, id b3.TraceID) spanKey {
	var slot *tracing.Slot
	if ctx != nil {
		slot = tracing.SlotFrom(ctx)
	}
	return spanKey{slot: slot, traceID: id.TraceID(), spanID: id.SpanID()}
}

// OpenTracingRecorder records spans with an OpenTracing tracer. Push starts
// an RPC server span, joined to the B3 context when the tracer can extract
// it, SetRPCName sets the operation name, timestamped annotations become
// span logs, binary annotations become tags and Pop finishes the span.
// Spans are kept per request, so requests sharing B3 ids each get their own.
// It is safe for concurrent use.
type OpenTracingRecorder struct {
	tracer opentracing.Tracer

	mu    sync.Mutex
	spans map[spanKey]opentracing.Span
}

// NewOpenTracingRecorder returns a recorder reporting to tracer. A nil tracer
// means the OpenTracing global tracer.
func NewOpenTracingRecorder(tracer opentracing.Tracer) *OpenTracingRecorder {
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	return &OpenTracingRecorder{
		tracer: tracer,
		spans:  make(map[spanKey]opentracing.Span),
	}
}

// Tracer returns the underlying tracer.
func (r *OpenTracingRecorder) Tracer() opentracing.Tracer {
	return r.tracer
}

// Push implements Recorder.
func (r *OpenTracingRecorder) Push(ctx context.Context, id b3.TraceID) error {
	key := keyOf(ctx, id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.spans[key]; exists {
		return errors.Errorf("zipkin: span %s already pushed", id.SpanID())
	}

	carrier := opentracing.TextMapCarrier{}
	b3.Inject(id, carrier)
	parent, err := r.tracer.Extract(opentracing.TextMap, carrier)
	if err != nil {
		// Tracers without B3 support start a root span tagged with the ids.
		parent = nil
	}
	parentID, _ := id.ParentID()
	sampled, _ := id.Sampled()
	span := r.tracer.StartSpan("",
		ext.RPCServerOption(parent),
		opentracing.Tag{Key: tracing.TraceIDKey, Value: id.TraceID()},
		opentracing.Tag{Key: tracing.SpanIDKey, Value: id.SpanID()},
		opentracing.Tag{Key: tracing.ParentIDKey, Value: parentID},
		opentracing.Tag{Key: tracing.SampledKey, Value: sampled})
	if !sampled {
		ext.SamplingPriority.Set(span, 0)
	}

	r.spans[key] = span
	return nil
}

// SetRPCName implements Recorder.
func (r *OpenTracingRecorder) SetRPCName(ctx context.Context, id b3.TraceID, name string) error {
	span, err := r.span(ctx, id)
	if err != nil {
		return err
	}
	span.SetOperationName(name)
	return nil
}

// Record implements Recorder.
func (r *OpenTracingRecorder) Record(ctx context.Context, id b3.TraceID, a Annotation) error {
	span, err := r.span(ctx, id)
	if err != nil {
		return err
	}
	if a.IsBinary() {
		switch a.Key {
		case HTTPURIKey:
			ext.HTTPUrl.Set(span, a.Value)
		case ErrorKey:
			ext.Error.Set(span, true)
			span.SetTag(ErrorKey+".message", a.Value)
			return nil
		}
		span.SetTag(a.Key, a.Value)
		return nil
	}
	span.LogFields(
		log.String("event", a.Value),
		log.String("service", a.Endpoint.ServiceName),
		log.Int("port", a.Endpoint.Port))
	return nil
}

// Pop implements Recorder.
func (r *OpenTracingRecorder) Pop(ctx context.Context, id b3.TraceID) error {
	key := keyOf(ctx, id)
	r.mu.Lock()
	span, ok := r.spans[key]
	delete(r.spans, key)
	r.mu.Unlock()
	if !ok {
		return errUnknownSpan
	}
	span.Finish()
	return nil
}

// InFlight returns the number of pushed spans that have not been popped.
func (r *OpenTracingRecorder) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spans)
}

func (r *OpenTracingRecorder) span(ctx context.Context, id b3.TraceID) (opentracing.Span, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span, ok := r.spans[keyOf(ctx, id)]
	if !ok {
		return nil, errUnknownSpan
	}
	return span, nil
}
