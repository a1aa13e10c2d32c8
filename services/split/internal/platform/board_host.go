//go:build !rp2040

package platform

import (
	"sync"

	"splitlink-go/services/split/internal/linkdrv"
)

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements linkdrv.GPIOPin with fault injection for tests.
//
// Reads resolve in order: stuck value, then output latch when driving,
// then an external drive, then the pull. A pending glitch inverts the
// next reads.
type FakePin struct {
	mu       sync.Mutex
	number   int
	out      bool
	latch    bool
	pull     linkdrv.Pull
	ext      *bool
	stuck    *bool
	glitches int
	script   []bool
	writes   int
	midway   bool
	irq      func() // interrupt point between mode and level writes
}

func (p *FakePin) ConfigureInput(pull linkdrv.Pull) error {
	p.mu.Lock()
	p.out = false
	p.writes++
	p.midway = true
	p.mu.Unlock()
	p.interrupt()
	p.mu.Lock()
	p.pull = pull
	p.midway = false
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.out = true
	p.writes++
	p.midway = true
	p.mu.Unlock()
	p.interrupt()
	p.mu.Lock()
	p.latch = initial
	p.midway = false
	p.mu.Unlock()
	return nil
}

func (p *FakePin) interrupt() {
	if p.irq != nil {
		p.irq()
	}
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	p.latch = level
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.levelLocked()
	if p.glitches > 0 {
		p.glitches--
		v = !v
	}
	return v
}

func (p *FakePin) levelLocked() bool {
	switch {
	case p.stuck != nil:
		return *p.stuck
	case len(p.script) > 0:
		v := p.script[0]
		if len(p.script) > 1 {
			p.script = p.script[1:]
		}
		return v
	case p.out:
		return p.latch
	case p.ext != nil:
		return *p.ext
	default:
		return p.pull == linkdrv.PullUp
	}
}

func (p *FakePin) Number() int { return p.number }

// Drive simulates an external source holding the line (the other half's
// TX or a strap resistor). It loses to the pin's own output driver.
func (p *FakePin) Drive(level bool) {
	p.mu.Lock()
	p.ext = &level
	p.mu.Unlock()
}

// Release removes the external drive.
func (p *FakePin) Release() {
	p.mu.Lock()
	p.ext = nil
	p.mu.Unlock()
}

// Stick forces every read to level until Unstick.
func (p *FakePin) Stick(level bool) {
	p.mu.Lock()
	p.stuck = &level
	p.mu.Unlock()
}

func (p *FakePin) Unstick() {
	p.mu.Lock()
	p.stuck = nil
	p.mu.Unlock()
}

// Glitch inverts the next n reads.
func (p *FakePin) Glitch(n int) {
	p.mu.Lock()
	p.glitches = n
	p.mu.Unlock()
}

// Script queues levels returned by successive reads. The last level
// repeats once the queue is exhausted.
func (p *FakePin) Script(levels ...bool) {
	p.mu.Lock()
	p.script = append([]bool(nil), levels...)
	p.mu.Unlock()
}

// IsOutput reports the configured direction.
func (p *FakePin) IsOutput() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

// Latch reports the output latch without the read-side faults.
func (p *FakePin) Latch() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latch
}

func (p *FakePin) PullMode() linkdrv.Pull {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pull
}

// Midway reports a configuration caught between its mode and level writes.
func (p *FakePin) Midway() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.midway
}

// Writes counts mode changes.
func (p *FakePin) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

// HostPinFactory returns stable *FakePin instances per number.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
	irq  func()
	max  int
}

func (f *HostPinFactory) ByNumber(n int) (linkdrv.GPIOPin, bool) {
	p, ok := f.Get(n)
	if !ok {
		return nil, false
	}
	return p, true
}

// Get exposes the underlying *FakePin for tests.
func (f *HostPinFactory) Get(n int) (*FakePin, bool) {
	limit := f.max
	if limit == 0 {
		limit = 29
	}
	if n < 0 || n > limit {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n, irq: f.irq}
		f.pins[n] = p
	}
	return p, true
}

// Pin is Get for callers that know n is in range.
func (f *HostPinFactory) Pin(n int) *FakePin {
	p, _ := f.Get(n)
	return p
}

// ----------------------------- Simulated board -------------------------------

// SimBoard is an RP2040-shaped board on the host. Interrupts raised while
// a critical section is open are held pending and run when it closes, the
// same way the NVIC defers them on the MCU.
type SimBoard struct {
	*HostPinFactory

	mu      sync.Mutex
	masked  bool
	pending bool
	isr     func()
}

// NewSimBoard creates a board with GP0..GP29.
func NewSimBoard() *SimBoard {
	b := &SimBoard{}
	b.HostPinFactory = &HostPinFactory{max: 29, irq: b.Interrupt}
	return b
}

// Board returns the platform binding for the simulated pins.
func (b *SimBoard) Board() Board {
	return Board{Pins: b.HostPinFactory, Critical: b.Critical}
}

// Critical masks the simulated interrupt for the duration of fn.
func (b *SimBoard) Critical(fn func()) {
	b.mu.Lock()
	was := b.masked
	b.masked = true
	b.mu.Unlock()

	fn()

	b.mu.Lock()
	b.masked = was
	run := !was && b.pending
	if run {
		b.pending = false
	}
	isr := b.isr
	b.mu.Unlock()
	if run && isr != nil {
		isr()
	}
}

// OnInterrupt installs the simulated ISR body.
func (b *SimBoard) OnInterrupt(fn func()) {
	b.mu.Lock()
	b.isr = fn
	b.mu.Unlock()
}

// Interrupt fires the ISR now, or marks it pending while masked.
func (b *SimBoard) Interrupt() {
	b.mu.Lock()
	if b.masked {
		b.pending = true
		b.mu.Unlock()
		return
	}
	isr := b.isr
	b.mu.Unlock()
	if isr != nil {
		isr()
	}
}

// Default returns a fresh simulated board. Host builds have no hardware.
func Default() Board { return NewSimBoard().Board() }
