package diag

import (
	"iter"
	"sync"

	"splitlink-go/x/mathx"
	"splitlink-go/x/ring"
)

// DefaultCapacity is the sink size used when none is configured.
const DefaultCapacity = 32

// Sink is a fixed-size event log. Record overwrites the oldest entry when
// full and never allocates after construction. The lock is held only for a
// single push or pop, so a drain goroutine may run beside the recorder.
type Sink struct {
	mu sync.Mutex
	r  *ring.Ring[Event]
}

// NewSink rounds capacity up to a power of two (minimum 2).
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	capacity = mathx.Max(mathx.CeilPow2(capacity), 2)
	return &Sink{r: ring.New[Event](capacity)}
}

func (s *Sink) Record(ev Event) {
	s.mu.Lock()
	s.r.Push(ev)
	s.mu.Unlock()
}

// Drain yields pending events oldest first, removing each as it is
// produced. Stopping early leaves the rest in place.
func (s *Sink) Drain() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			s.mu.Lock()
			ev, ok := s.r.Pop()
			s.mu.Unlock()
			if !ok || !yield(ev) {
				return
			}
		}
	}
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Len()
}

func (s *Sink) Cap() int { return s.r.Cap() }

// Dropped counts events evicted before they were drained.
func (s *Sink) Dropped() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Dropped()
}
