package logging

import (
	"context"
)

type keyType int

const (
	loggerContextKey keyType = iota
)

// From returns the logger in ctx. If no logger is found then the global
// logger is returned. For example if you pass context.Background() then
// you will get back the global logger. From will panic if ctx is nil.
func From(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey).(*Logger); ok && l != nil {
		return l
	}
	return Global()
}

// NewContext creates a new context that includes logger, extended with fields,
// as a value. The logger can be retrieved using logging.From(ctx)
func NewContext(ctx context.Context, logger *Logger, fields ...interface{}) context.Context {
	if logger != nil {
		logger = logger.With(fields...)
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// NewComponentContext creates a new context that includes a component logger. A
// component logger will trace the field {"component": component}. The parent
// logger is acquired by calling logging.From(ctx).
func NewComponentContext(ctx context.Context, component string, fields ...interface{}) context.Context {
	fields = append([]interface{}{ComponentKey, component}, fields...)
	return NewContext(ctx, From(ctx), fields...)
}

// NewTraceContext creates a context with a request logger that includes the
// trace id and span id of the request in each trace. The request logger is
// derived from the logger found by calling logging.From(ctx).
func NewTraceContext(ctx context.Context, traceID, spanID string) context.Context {
	return NewContext(ctx, From(ctx), TraceIDKey, traceID, SpanIDKey, spanID)
}

// NewTestContext is a convenience function for use in unit tests when
// calling functions that expect a context with a logger. Call NewTestContext
// like this: logging.NewTestContext(t.Name()).
func NewTestContext(testName string) context.Context {
	return NewContext(context.Background(), New(testName))
}
