package zipkin

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellycard/zipkin-tracer/b3"
	"github.com/bellycard/zipkin-tracer/logging"
	"github.com/bellycard/zipkin-tracer/metrics"
	"github.com/bellycard/zipkin-tracer/tracing"
)

// fakeRecorder records tracer calls, and the application call, in order.
// fail maps a method name to "error" or "panic".
type fakeRecorder struct {
	mu     sync.Mutex
	events []string
	fail   map[string]string
}

func (f *fakeRecorder) add(method, event string) error {
	f.mu.Lock()
	f.events = append(f.events, event)
	mode := f.fail[method]
	f.mu.Unlock()
	switch mode {
	case "error":
		return fmt.Errorf("%s failed", method)
	case "panic":
		panic(method + " exploded")
	}
	return nil
}

func (f *fakeRecorder) Push(ctx context.Context, id b3.TraceID) error { return f.add("push", "push") }

func (f *fakeRecorder) SetRPCName(ctx context.Context, id b3.TraceID, name string) error {
	return f.add("rpc", "rpc:"+name)
}

func (f *fakeRecorder) Record(ctx context.Context, id b3.TraceID, a Annotation) error {
	if a.IsBinary() {
		return f.add("record", a.Key+"="+a.Value)
	}
	return f.add("record", a.Value)
}

func (f *fakeRecorder) Pop(ctx context.Context, id b3.TraceID) error { return f.add("pop", "pop") }

func (f *fakeRecorder) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func sampleConfig() map[string]interface{} {
	return map[string]interface{}{
		"service_name":  "mccadmin",
		"service_port":  9410,
		"sample_rate":   1,
		"scribe_server": "127.0.0.1:9410",
	}
}

func sampleRequest() *http.Request {
	r := httptest.NewRequest("GET", "http://someexample.org/some_path?hi=there", nil)
	r.Header.Set("User-Agent", "curl/7.24.0")
	r.Header.Set("Accept", "*/*")
	return r
}

// okApp records its invocation in rec and captures the request's slot.
type okApp struct {
	rec   *fakeRecorder
	calls int
	slot  *tracing.Slot
	id    b3.TraceID
	hasID bool
}

func (a *okApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.calls++
	if a.rec != nil {
		a.rec.add("app", "app")
	}
	a.slot = tracing.SlotFrom(r.Context())
	a.id, a.hasID = tracing.TraceIDFrom(r.Context())
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func newTestHandler(t *testing.T, app http.Handler, rec Recorder, opts ...Option) *Handler {
	opts = append([]Option{WithRecorder(rec), WithLogger(logging.NewWithOutput(t.Name(), logging.Lock(&bytes.Buffer{})))}, opts...)
	h, err := NewHandler(app, sampleConfig(), opts...)
	require.NoError(t, err)
	return h
}

func TestServeHTTPReturnsApplicationResponse(t *testing.T) {
	rec := &fakeRecorder{}
	app := &okApp{rec: rec}
	h := newTestHandler(t, app, rec)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, sampleRequest())

	assert.Equal(t, 1, app.calls)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestServeHTTPAnnotationOrder(t *testing.T) {
	rec := &fakeRecorder{}
	app := &okApp{rec: rec}
	h := newTestHandler(t, app, rec)

	h.ServeHTTP(httptest.NewRecorder(), sampleRequest())

	assert.Equal(t, []string{
		"push",
		"rpc:GET",
		"sr",
		"http.uri=/some_path",
		"http.query=hi=there",
		"peer.address=192.0.2.1:1234",
		"app",
		"http.status_code=200",
		"ss",
		"pop",
	}, rec.Events())
}

func TestServeHTTPPropagatesInboundTrace(t *testing.T) {
	rec := &fakeRecorder{}
	app := &okApp{}
	h := newTestHandler(t, app, rec)

	r := sampleRequest()
	r.Header.Set("X-B3-TraceId", "463ac35c9f6413ad")
	r.Header.Set("X-B3-ParentSpanId", "0020000000000001")
	r.Header.Set("X-B3-SpanId", "a2fb4a1d1a96d312")
	r.Header.Set("X-B3-Sampled", "true")
	r.Header.Set("X-B3-Flags", "1")
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.True(t, app.hasID)
	assert.Equal(t, b3.New("463ac35c9f6413ad", "0020000000000001", "a2fb4a1d1a96d312", b3.Sampled, 1), app.id)
}

func TestServeHTTPHonorsInboundSamplingDecision(t *testing.T) {
	never := newTestHandler(t, &okApp{}, &fakeRecorder{})
	never.sampler = b3.NewSampler(0, nil)
	always := newTestHandler(t, &okApp{}, &fakeRecorder{})

	for i := 0; i < 20; i++ {
		app := &okApp{}
		r := sampleRequest()
		r.Header.Set("X-B3-TraceId", "463ac35c9f6413ad")
		r.Header.Set("X-B3-SpanId", "a2fb4a1d1a96d312")
		r.Header.Set("X-B3-Sampled", "1")
		never.Wrap(app).ServeHTTP(httptest.NewRecorder(), r)
		sampled, _ := app.id.Sampled()
		assert.True(t, sampled)

		app = &okApp{}
		r.Header.Set("X-B3-Sampled", "0")
		always.Wrap(app).ServeHTTP(httptest.NewRecorder(), r)
		sampled, _ = app.id.Sampled()
		assert.False(t, sampled)
	}
}

func TestServeHTTPSamplesProbabilistically(t *testing.T) {
	cfg := sampleConfig()
	cfg["sample_rate"] = 0.1
	app := &okApp{}
	h, err := NewHandler(app, cfg, WithRecorder(NopRecorder{}), WithRandSource(rand.NewSource(1)))
	require.NoError(t, err)

	const numRequests = 100
	count := 0
	for i := 0; i < numRequests; i++ {
		h.ServeHTTP(httptest.NewRecorder(), sampleRequest())
		require.True(t, app.hasID)
		if sampled, determined := app.id.Sampled(); determined && sampled {
			count++
		}
	}
	expected := numRequests * 0.1
	assert.True(t, float64(count) > expected-10 && float64(count) < expected+10, "sampled %d of %d", count, numRequests)
}

func TestServeHTTPClearsContext(t *testing.T) {
	app := &okApp{}
	h := newTestHandler(t, app, &fakeRecorder{})

	h.ServeHTTP(httptest.NewRecorder(), sampleRequest())

	require.NotNil(t, app.slot)
	assert.True(t, app.hasID, "trace id is visible to the application")
	_, ok := app.slot.Get()
	assert.False(t, ok, "trace id is cleared after the request")
}

func TestServeHTTPSurvivesTracerFailures(t *testing.T) {
	for _, mode := range []string{"error", "panic"} {
		t.Run(mode, func(t *testing.T) {
			rec := &fakeRecorder{fail: map[string]string{"push": mode, "rpc": mode, "record": mode, "pop": mode}}
			app := &okApp{}
			reg := prometheus.NewRegistry()
			m := metrics.NewTracerMetrics("test", reg)
			var logs bytes.Buffer
			h, err := NewHandler(app, sampleConfig(),
				WithRecorder(rec),
				WithMetrics(m),
				WithLogger(logging.NewWithOutput("tracer-failures", logging.Lock(&logs))))
			require.NoError(t, err)

			w := httptest.NewRecorder()
			assert.NotPanics(t, func() { h.ServeHTTP(w, sampleRequest()) })

			assert.Equal(t, 1, app.calls, "application is called exactly once")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "ok", w.Body.String())
			_, ok := app.slot.Get()
			assert.False(t, ok)

			// push, rpc, server_recv, request_annotations, server_send and pop
			assert.Equal(t, 6, strings.Count(logs.String(), `"message":"Discarded tracer failure"`))
			assert.Contains(t, logs.String(), `"stage":"push"`)
			assert.Contains(t, logs.String(), `"traceId":"`+app.id.TraceID()+`"`)
			count, err := testutil.GatherAndCount(reg, "test_zipkin_tracer_errors_total")
			require.NoError(t, err)
			assert.Equal(t, 6, count)
		})
	}
}

func TestServeHTTPPushFailureStillRecordsSend(t *testing.T) {
	rec := &fakeRecorder{fail: map[string]string{"push": "panic"}}
	app := &okApp{rec: rec}
	h := newTestHandler(t, app, rec)

	h.ServeHTTP(httptest.NewRecorder(), sampleRequest())

	events := rec.Events()
	assert.Equal(t, "push", events[0])
	assert.Contains(t, events, "app")
	assert.Equal(t, "pop", events[len(events)-1])
}

func TestServeHTTPApplicationPanic(t *testing.T) {
	rec := &fakeRecorder{}
	var slot *tracing.Slot
	calls := 0
	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		slot = tracing.SlotFrom(r.Context())
		panic("boom")
	})
	h := newTestHandler(t, app, rec)

	assert.PanicsWithValue(t, "boom", func() { h.ServeHTTP(httptest.NewRecorder(), sampleRequest()) })

	assert.Equal(t, 1, calls)
	require.NotNil(t, slot)
	_, ok := slot.Get()
	assert.False(t, ok, "trace id is cleared when the application panics")
	events := rec.Events()
	assert.NotContains(t, events, "ss")
	assert.Contains(t, events, "error=application panic")
	assert.Equal(t, "pop", events[len(events)-1])
}

func TestServeHTTPApplicationPanicWithFailingTracer(t *testing.T) {
	rec := &fakeRecorder{fail: map[string]string{"record": "panic", "pop": "panic"}}
	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})
	h := newTestHandler(t, app, rec)

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() { h.ServeHTTP(httptest.NewRecorder(), sampleRequest()) })
}

func TestServeHTTPConcurrentRequestsAreIsolated(t *testing.T) {
	h := newTestHandler(t, nil, &fakeRecorder{})
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			spanID := fmt.Sprintf("%016x", i+1)
			var seen b3.TraceID
			app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = tracing.TraceIDFrom(r.Context())
			})
			r := sampleRequest()
			r.Header.Set("X-B3-TraceId", "463ac35c9f6413ad")
			r.Header.Set("X-B3-SpanId", spanID)
			h.Wrap(app).ServeHTTP(httptest.NewRecorder(), r)
			assert.Equal(t, spanID, seen.SpanID())
		}(i)
	}
	wg.Wait()
}

func TestServeHTTPWithOpenTracingRecorder(t *testing.T) {
	tracer := mocktracer.New()
	rec := NewOpenTracingRecorder(tracer)
	app := &okApp{}
	h := newTestHandler(t, app, rec)

	h.ServeHTTP(httptest.NewRecorder(), sampleRequest())

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET", span.OperationName)
	tags := span.Tags()
	assert.Equal(t, "/some_path", tags["http.uri"])
	assert.Equal(t, "/some_path", tags["http.url"])
	assert.Equal(t, "200", tags[HTTPStatusCodeKey])
	assert.Equal(t, app.id.TraceID(), tags[tracing.TraceIDKey])
	assert.Equal(t, app.id.SpanID(), tags[tracing.SpanIDKey])
	assert.Equal(t, "server", fmt.Sprint(tags["span.kind"]))

	logs := span.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, ServerRecv, logs[0].Fields[0].ValueString)
	assert.Equal(t, ServerSend, logs[1].Fields[0].ValueString)
	assert.Equal(t, 0, rec.InFlight())
}

func TestServeHTTPWithOpenTracingRecorderApplicationPanic(t *testing.T) {
	tracer := mocktracer.New()
	rec := NewOpenTracingRecorder(tracer)
	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	h := newTestHandler(t, app, rec)

	assert.Panics(t, func() { h.ServeHTTP(httptest.NewRecorder(), sampleRequest()) })

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, true, spans[0].Tag("error"))
	assert.Equal(t, 0, rec.InFlight())
}

func TestServeHTTPSharedIDsKeepSeparateSpans(t *testing.T) {
	tracer := mocktracer.New()
	rec := NewOpenTracingRecorder(tracer)
	h := newTestHandler(t, nil, rec)

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := h.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))
	fast := h.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	withIDs := func(method, path string) *http.Request {
		r := httptest.NewRequest(method, "http://someexample.org"+path, nil)
		r.Header.Set(b3.TraceIDHeader, "463ac35c9f6413ad")
		r.Header.Set(b3.SpanIDHeader, "a2fb4a1d1a96d312")
		r.Header.Set(b3.SampledHeader, "1")
		return r
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		slow.ServeHTTP(httptest.NewRecorder(), withIDs(http.MethodGet, "/slow"))
	}()
	<-entered
	fast.ServeHTTP(httptest.NewRecorder(), withIDs(http.MethodPost, "/fast"))

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST", spans[0].OperationName)
	assert.Equal(t, "/fast", spans[0].Tag(HTTPURIKey))
	assert.Equal(t, 1, rec.InFlight())

	close(release)
	<-done
	spans = tracer.FinishedSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET", spans[1].OperationName)
	assert.Equal(t, "/slow", spans[1].Tag(HTTPURIKey))
	assert.Equal(t, "200", spans[1].Tag(HTTPStatusCodeKey))
	assert.Equal(t, 0, rec.InFlight())
}

func TestNewMiddlewareServedDirectly(t *testing.T) {
	rec := &fakeRecorder{}
	mw, err := NewMiddleware(sampleConfig(), WithRecorder(rec))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() { mw.ServeHTTP(w, sampleRequest()) })
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, rec.Events(), "http.status_code=404")
	assert.NotContains(t, rec.Events(), "error=application panic")
}

func TestNewMiddleware(t *testing.T) {
	rec := &fakeRecorder{}
	mw, err := NewMiddleware(sampleConfig(), WithRecorder(rec))
	require.NoError(t, err)
	assert.Equal(t, 1.0, mw.SampleRate())

	app := &okApp{}
	w := httptest.NewRecorder()
	mw.Wrap(app).ServeHTTP(w, sampleRequest())
	assert.Equal(t, 1, app.calls)
	assert.Equal(t, "ok", w.Body.String())
	assert.Contains(t, rec.Events(), "ss")
	assert.NoError(t, mw.Close())
}
