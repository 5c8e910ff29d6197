package tracing

import (
	"net/http"
)

// ResponseWriter wraps an http.ResponseWriter to capture the status code and
// the number of bytes written.
type ResponseWriter struct {
	w             http.ResponseWriter
	responseBytes uint64
	statusCode    int
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{w: w}
}

// Implements http.ResponseWriter
func (r *ResponseWriter) Write(b []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	r.responseBytes += uint64(len(b))
	return r.w.Write(b)
}

// Implements http.ResponseWriter
func (r *ResponseWriter) WriteHeader(statusCode int) {
	if r.statusCode == 0 {
		r.statusCode = statusCode
	}
	r.w.WriteHeader(statusCode)
}

// Implements http.ResponseWriter
func (r *ResponseWriter) Header() http.Header {
	return r.w.Header()
}

// Flush implements http.Flusher when the wrapped writer does.
func (r *ResponseWriter) Flush() {
	if f, ok := r.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *ResponseWriter) ResponseBytes() uint64 {
	return r.responseBytes
}

// StatusCode returns the status written by the handler, or 0 if it has not
// written anything yet.
func (r *ResponseWriter) StatusCode() int {
	return r.statusCode
}
