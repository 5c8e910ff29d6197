package tracing

// Constants for standard key names used in log fields and span tags
const (
	TraceIDKey  = "traceId"
	SpanIDKey   = "spanId"
	ParentIDKey = "parentId"
	SampledKey  = "sampled"
)
