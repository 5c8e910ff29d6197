package zipkin

import (
	"context"
	"time"

	"github.com/bellycard/zipkin-tracer/b3"
)

// Standard Zipkin annotation values.
const (
	ServerRecv = "sr"
	ServerSend = "ss"
	ClientSend = "cs"
	ClientRecv = "cr"
)

// Standard binary annotation keys.
const (
	HTTPURIKey        = "http.uri"
	HTTPQueryKey      = "http.query"
	HTTPStatusCodeKey = "http.status_code"
	PeerAddressKey    = "peer.address"
	ErrorKey          = "error"
)

// Endpoint identifies the service recording an annotation.
type Endpoint struct {
	ServiceName string
	Port        int
}

// An Annotation is either a timestamped event (Key is empty) or a binary
// key/value tag attached to a span.
type Annotation struct {
	Key       string
	Value     string
	Timestamp time.Time
	Endpoint  Endpoint
}

// NewAnnotation returns a timestamped annotation.
func NewAnnotation(value string, endpoint Endpoint) Annotation {
	return Annotation{Value: value, Timestamp: time.Now(), Endpoint: endpoint}
}

// NewBinaryAnnotation returns a key/value annotation.
func NewBinaryAnnotation(key, value string, endpoint Endpoint) Annotation {
	return Annotation{Key: key, Value: value, Timestamp: time.Now(), Endpoint: endpoint}
}

// IsBinary reports whether a is a key/value annotation.
func (a Annotation) IsBinary() bool {
	return len(a.Key) > 0
}

// A Recorder receives spans from the middleware and reports them to a
// collector. Every method may fail; the middleware logs and discards the
// errors, and recovers panics, so a failing Recorder never affects the
// request being traced.
//
// ctx is the context of the traced request. Concurrent requests may carry the
// same B3 ids, so recorders tell their spans apart by the request's
// tracing.Slot rather than by id alone.
type Recorder interface {
	// Push opens the span identified by id.
	Push(ctx context.Context, id b3.TraceID) error
	// SetRPCName names the span.
	SetRPCName(ctx context.Context, id b3.TraceID, name string) error
	// Record attaches an annotation to the span.
	Record(ctx context.Context, id b3.TraceID, a Annotation) error
	// Pop closes the span.
	Pop(ctx context.Context, id b3.TraceID) error
}

// NopRecorder drops everything.
type NopRecorder struct{}

func (NopRecorder) Push(context.Context, b3.TraceID) error { return nil }
func (NopRecorder) SetRPCName(context.Context, b3.TraceID, string) error { return nil }
func (NopRecorder) Record(context.Context, b3.TraceID, Annotation) error { return nil }
func (NopRecorder) Pop(context.Context, b3.TraceID) error { return nil }
