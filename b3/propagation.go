package b3

import (
	"net/http"
	"strconv"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
)

// B3 propagation header names.
const (
	TraceIDHeader      = "X-B3-TraceId"
	ParentSpanIDHeader = "X-B3-ParentSpanId"
	SpanIDHeader       = "X-B3-SpanId"
	SampledHeader      = "X-B3-Sampled"
	FlagsHeader        = "X-B3-Flags"
)

type headers struct {
	traceID  string
	parentID string
	spanID   string
	sampled  string
	flags    string
}

// Extract derives a TraceID from the B3 headers found in carrier. Header
// names are matched case-insensitively. When the carrier holds no usable
// trace and span ids a new root TraceID is originated with gen, so Extract
// never fails. The sampling decision is read from the carrier when present
// and left Undetermined otherwise.
func Extract(carrier opentracing.TextMapReader, gen IDGenerator) TraceID {
	if gen == nil {
		gen = DefaultGenerator
	}
	var h headers
	if carrier != nil {
		// ForeachKey only fails when the handler does, which it never does here.
		_ = carrier.ForeachKey(func(key, val string) error {
			switch {
			case strings.EqualFold(key, TraceIDHeader):
				h.traceID = val
			case strings.EqualFold(key, ParentSpanIDHeader):
				h.parentID = val
			case strings.EqualFold(key, SpanIDHeader):
				h.spanID = val
			case strings.EqualFold(key, SampledHeader):
				h.sampled = val
			case strings.EqualFold(key, FlagsHeader):
				h.flags = val
			}
			return nil
		})
	}

	traceID := normalizeID(h.traceID, 16, 32)
	spanID := normalizeID(h.spanID, 16)
	if traceID == "" || spanID == "" {
		return NewRoot(gen)
	}
	parentID := ""
	if len(h.parentID) > 0 {
		if parentID = normalizeID(h.parentID, 16); parentID == "" {
			return NewRoot(gen)
		}
	}
	return New(traceID, parentID, spanID, parseSampled(h.sampled), parseFlags(h.flags))
}

// ExtractHTTP is Extract for http request headers.
func ExtractHTTP(header http.Header, gen IDGenerator) TraceID {
	return Extract(opentracing.HTTPHeadersCarrier(header), gen)
}

// Inject writes id into carrier as B3 headers. The sampled header is only
// written once a decision has been made.
func Inject(id TraceID, carrier opentracing.TextMapWriter) {
	carrier.Set(TraceIDHeader, id.traceID)
	carrier.Set(SpanIDHeader, id.spanID)
	if parentID, ok := id.ParentID(); ok {
		carrier.Set(ParentSpanIDHeader, parentID)
	}
	if sampled, ok := id.Sampled(); ok {
		if sampled {
			carrier.Set(SampledHeader, "1")
		} else {
			carrier.Set(SampledHeader, "0")
		}
	}
	if id.flags != 0 {
		carrier.Set(FlagsHeader, strconv.FormatInt(id.flags, 10))
	}
}

// InjectHTTP is Inject for http request headers.
func InjectHTTP(id TraceID, header http.Header) {
	Inject(id, opentracing.HTTPHeadersCarrier(header))
}

// normalizeID returns the lower case form of s when it is a non-zero hex
// string of one of the allowed lengths, and the empty string otherwise.
func normalizeID(s string, lengths ...int) string {
	s = strings.TrimSpace(s)
	valid := false
	for _, n := range lengths {
		if len(s) == n {
			valid = true
			break
		}
	}
	if !valid {
		return ""
	}
	zero := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return ""
		}
		if c != '0' {
			zero = false
		}
	}
	if zero {
		return ""
	}
	return strings.ToLower(s)
}

func parseSampled(s string) Sampling {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return Sampled
	case "0", "false":
		return NotSampled
	default:
		return Undetermined
	}
}

func parseFlags(s string) int64 {
	flags, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return flags
}
