package b3

import (
	"math/rand"
	"sync"
	"time"
)

// A Sampler makes the probabilistic decision to fully record a trace.
// It is safe for concurrent use.
type Sampler struct {
	rate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSampler returns a sampler that samples undetermined traces with
// probability rate. A nil src seeds a new source from the clock; tests pass
// a seeded source to get deterministic decisions.
func NewSampler(rate float64, src rand.Source) *Sampler {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Sampler{rate: rate, rnd: rand.New(src)}
}

// Rate returns the configured sample rate.
func (s *Sampler) Rate() float64 {
	return s.rate
}

// Decide returns the decision for a trace. A decision already made upstream
// is returned unchanged; otherwise a uniform value in [0,1) is drawn and the
// trace is sampled when it falls below the rate.
func (s *Sampler) Decide(existing Sampling) bool {
	switch existing {
	case Sampled:
		return true
	case NotSampled:
		return false
	}
	s.mu.Lock()
	v := s.rnd.Float64()
	s.mu.Unlock()
	return v < s.rate
}

// Resolve returns id with a determined sampling state, deciding with s
// when id does not carry a decision yet.
func (s *Sampler) Resolve(id TraceID) TraceID {
	if _, ok := id.Sampled(); ok {
		return id
	}
	return id.WithSampled(s.Decide(Undetermined))
}
