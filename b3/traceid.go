package b3

import "fmt"

// Sampling is the sampling state carried by a TraceID. A trace whose decision
// has not been made yet is Undetermined; once decided it is either Sampled or
// NotSampled and that decision is never changed downstream.
type Sampling int8

const (
	Undetermined Sampling = iota
	Sampled
	NotSampled
)

// String implements fmt.Stringer.
func (s Sampling) String() string {
	switch s {
	case Sampled:
		return "sampled"
	case NotSampled:
		return "not-sampled"
	default:
		return "undetermined"
	}
}

// SamplingOf converts a decision into a determined Sampling.
func SamplingOf(sampled bool) Sampling {
	if sampled {
		return Sampled
	}
	return NotSampled
}

// FlagDebug is the bit of the B3 flags field that marks a debug trace.
const FlagDebug int64 = 1

// A TraceID identifies one span of a distributed trace. It is immutable: the
// With* methods return modified copies. Two TraceIDs are equal when all of
// their fields are equal, so == can be used to compare them.
type TraceID struct {
	traceID  string
	parentID string
	spanID   string
	sampling Sampling
	flags    int64
}

// New constructs a TraceID. An empty parentID means the span is a root span.
func New(traceID, parentID, spanID string, sampling Sampling, flags int64) TraceID {
	return TraceID{
		traceID:  traceID,
		parentID: parentID,
		spanID:   spanID,
		sampling: sampling,
		flags:    flags,
	}
}

// NewRoot originates a new root TraceID with fresh identifiers and an
// undetermined sampling decision.
func NewRoot(gen IDGenerator) TraceID {
	return TraceID{
		traceID: gen.TraceID(),
		spanID:  gen.SpanID(),
	}
}

// NewChild derives the TraceID of a child span, used when calling out to
// another service. The sampling decision and flags are inherited.
func NewChild(parent TraceID, gen IDGenerator) TraceID {
	return TraceID{
		traceID:  parent.traceID,
		parentID: parent.spanID,
		spanID:   gen.SpanID(),
		sampling: parent.sampling,
		flags:    parent.flags,
	}
}

func (id TraceID) TraceID() string { return id.traceID }

func (id TraceID) SpanID() string { return id.spanID }

// ParentID returns the parent span id and whether the span has a parent.
func (id TraceID) ParentID() (string, bool) {
	return id.parentID, len(id.parentID) > 0
}

func (id TraceID) Sampling() Sampling { return id.sampling }

// Sampled returns the sampling decision. determined is false while no
// decision has been made, in which case sampled is false.
func (id TraceID) Sampled() (sampled bool, determined bool) {
	return id.sampling == Sampled, id.sampling != Undetermined
}

func (id TraceID) Flags() int64 { return id.flags }

// Debug reports whether the debug bit is set in flags. It does not affect
// the sampling decision.
func (id TraceID) Debug() bool { return id.flags&FlagDebug != 0 }

// WithSampled returns a copy of id carrying the given sampling decision.
func (id TraceID) WithSampled(sampled bool) TraceID {
	id.sampling = SamplingOf(sampled)
	return id
}

// String implements fmt.Stringer.
func (id TraceID) String() string {
	return fmt.Sprintf("TraceID(%s, parent:%s, span:%s, %s, flags:%d)",
		id.traceID, id.parentID, id.spanID, id.sampling, id.flags)
}
