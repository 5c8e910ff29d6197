package tracing

import (
	"context"
	"sync"

	"github.com/bellycard/zipkin-tracer/b3"
)

type keyType int

const (
	slotContextKey keyType = iota
)

// A Slot holds the single active TraceID of one request. The zero value is an
// empty slot ready to use. A Slot is safe for concurrent use.
type Slot struct {
	mu  sync.RWMutex
	id  b3.TraceID
	set bool
}

// Set stores id in the slot, replacing any previous value.
func (s *Slot) Set(id b3.TraceID) {
	s.mu.Lock()
	s.id, s.set = id, true
	s.mu.Unlock()
}

// Get returns the TraceID in the slot. ok is false when the slot is empty.
func (s *Slot) Get() (id b3.TraceID, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.set
}

// Clear empties the slot.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.id, s.set = b3.TraceID{}, false
	s.mu.Unlock()
}

// NewSlotContext creates a new empty slot and a context derived from ctx that
// carries it. Use SlotFrom() or TraceIDFrom() to get it back out.
func NewSlotContext(ctx context.Context) (context.Context, *Slot) {
	s := &Slot{}
	return context.WithValue(ctx, slotContextKey, s), s
}

// SlotFrom returns the slot in ctx, or nil if ctx carries none.
func SlotFrom(ctx context.Context) *Slot {
	if s, ok := ctx.Value(slotContextKey).(*Slot); ok {
		return s
	}
	return nil
}

// TraceIDFrom returns the active TraceID of the request ctx belongs to. ok is
// false when ctx carries no slot or the slot is empty.
func TraceIDFrom(ctx context.Context) (b3.TraceID, bool) {
	if s := SlotFrom(ctx); s != nil {
		return s.Get()
	}
	return b3.TraceID{}, false
}
