package logging

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/bellycard/zipkin-tracer/tracing"
)

// httpAccessHandler logs http access logs
type httpAccessHandler struct {
	next http.Handler
}

// NewHTTPAccessHandler constructs a new middleware instance for emitting
// http access logs. Register it inside the zipkin middleware to get the
// trace id and span id on each access log.
func NewHTTPAccessHandler(next http.Handler) http.Handler {
	return &httpAccessHandler{next: next}
}

// ServeHTTP implements http.Handler interface
func (h *httpAccessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := tracing.NewResponseWriter(w)
	start := time.Now()
	h.next.ServeHTTP(rw, r)
	duration := time.Since(start)
	durationStringMS := fmt.Sprintf("%0.3f", duration.Seconds()*1000)

	ctx := r.Context()
	sampled := false
	if id, ok := tracing.TraceIDFrom(ctx); ok {
		sampled, _ = id.Sampled()
	}
	From(ctx).Info("Handled request",
		"method", r.Method,
		"code", rw.StatusCode(),
		"responseBytes", rw.ResponseBytes(),
		"durationMS", durationStringMS,
		"path", r.URL.Path,
		"rawQuery", r.URL.RawQuery,
		tracing.SampledKey, sampled)
}

type requestLoggerHandler struct {
	handler      http.Handler // the next handler in the chain
	parentLogger *Logger
}

// NewRequestLoggerHandler creates a middleware instance that adds parentLogger to
// the http request context. Loggers derived later in the chain, for example the
// trace logger of the zipkin middleware, use it as their parent.
func NewRequestLoggerHandler(parentLogger *Logger, handler http.Handler) http.Handler {
	return &requestLoggerHandler{
		handler:      handler,
		parentLogger: parentLogger,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *requestLoggerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.parentLogger != nil {
		r = r.WithContext(NewContext(r.Context(), h.parentLogger))
	}
	h.handler.ServeHTTP(w, r)
}

type panicHandler struct {
	next http.Handler
}

// NewPanicHandler creates a middleware instance that handles panics and
// logs the error and callstack using the request logger. It also writes
// out an http response header and json body for an internal server error (status code 500).
// Register it outside the zipkin middleware: the middleware clears the trace
// context and lets application panics through unchanged.
func NewPanicHandler(next http.Handler) http.Handler {
	return &panicHandler{next: next}
}

func (p *panicHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rerr := recover(); rerr != nil {
			if rerr == http.ErrAbortHandler {
				panic(rerr)
			}
			log := From(r.Context())
			log.Error(panicError(rerr), "Handled panic", CallstackKey, string(debug.Stack()))
			w.Header().Add("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			if _, e := w.Write([]byte(`{"code": 500, "message": "Internal server error"}`)); e != nil {
				log.Error(e, "Unable to write http response")
			}
		}
	}()

	p.next.ServeHTTP(w, r)
}

// panicError converts the recover arg rerr to an error.
func panicError(rerr interface{}) error {
	switch rerr := rerr.(type) {
	case string:
		return errors.New(rerr)
	case error:
		return rerr
	default:
		return fmt.Errorf("Unknown panic '%v' of type %T", rerr, rerr)
	}
}
