package b3

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// IDGenerator produces new trace and span identifiers as lower case hex
// strings.
type IDGenerator interface {
	TraceID() string
	SpanID() string
}

// RandomGenerator produces 128-bit trace ids and 64-bit span ids from random
// (version 4) UUIDs.
type RandomGenerator struct{}

// TraceID returns 32 hex characters.
func (RandomGenerator) TraceID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// SpanID returns 16 hex characters.
func (RandomGenerator) SpanID() string {
	u := uuid.New()
	// Fold both halves so the fixed version and variant bits are mixed away.
	var b [8]byte
	for i := range b {
		b[i] = u[i] ^ u[i+8]
	}
	return hex.EncodeToString(b[:])
}

// DefaultGenerator is used when no generator is supplied.
var DefaultGenerator IDGenerator = RandomGenerator{}
