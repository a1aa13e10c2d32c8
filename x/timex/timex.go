package timex

import (
	"sync"
	"time"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Clock is a monotonic millisecond source.
type Clock interface {
	NowMs() int64
}

// Elapsed reports whether at least d ms have passed between since and now.
func Elapsed(now, since, d int64) bool { return now-since >= d }

// Mono is a Clock backed by the runtime's monotonic time, counted from creation.
type Mono struct{ start time.Time }

func NewMono() *Mono { return &Mono{start: time.Now()} }

func (m *Mono) NowMs() int64 { return time.Since(m.start).Milliseconds() }

// Fake is a manual Clock for tests. Each NowMs call advances the clock by
// Step after reading it, so polling loops make progress without sleeping.
type Fake struct {
	mu   sync.Mutex
	now  int64
	step int64
}

func NewFake(start, step int64) *Fake { return &Fake{now: start, step: step} }

func (f *Fake) NowMs() int64 {
	f.mu.Lock()
	v := f.now
	f.now += f.step
	f.mu.Unlock()
	return v
}

// Advance moves the clock forward by d ms.
func (f *Fake) Advance(d int64) {
	f.mu.Lock()
	f.now += d
	f.mu.Unlock()
}

// Peek returns the current time without stepping.
func (f *Fake) Peek() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}
