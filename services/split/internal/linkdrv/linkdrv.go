// Package linkdrv applies link pin roles and reads them back.
//
// Apply calls have no error channel. A pin write is assumed to land and is
// checked afterwards with ReadLevel.
package linkdrv

import "splitlink-go/services/split/internal/linkcfg"

// Adapter is the pin-level surface the supervisor drives.
type Adapter interface {
	ApplyOutputDrivenHigh(pin linkcfg.Pin)
	ApplyInputPulledHigh(pin linkcfg.Pin)
	ReadLevel(pin linkcfg.Pin) bool
}

// PinAdapter implements Adapter over a PinFactory. Each apply runs as one
// critical section so an ISR never sees a mode change without its level.
type PinAdapter struct {
	pins  PinFactory
	crit  Critical
	cache map[linkcfg.Pin]GPIOPin
}

func NewPinAdapter(pins PinFactory, crit Critical) *PinAdapter {
	if crit == nil {
		crit = NoCritical
	}
	return &PinAdapter{pins: pins, crit: crit, cache: make(map[linkcfg.Pin]GPIOPin, 4)}
}

func (a *PinAdapter) pin(n linkcfg.Pin) (GPIOPin, bool) {
	if p, ok := a.cache[n]; ok {
		return p, true
	}
	p, ok := a.pins.ByNumber(int(n))
	if !ok {
		return nil, false
	}
	a.cache[n] = p
	return p, true
}

func (a *PinAdapter) ApplyOutputDrivenHigh(n linkcfg.Pin) {
	p, ok := a.pin(n)
	if !ok {
		return
	}
	a.crit(func() {
		// Latch high before switching direction so the line never dips.
		p.Set(true)
		_ = p.ConfigureOutput(true)
	})
}

func (a *PinAdapter) ApplyInputPulledHigh(n linkcfg.Pin) {
	p, ok := a.pin(n)
	if !ok {
		return
	}
	a.crit(func() { _ = p.ConfigureInput(PullUp) })
}

// ReadLevel returns the pin's logical level. Unknown pins read low so they
// always fail verification.
func (a *PinAdapter) ReadLevel(n linkcfg.Pin) bool {
	p, ok := a.pin(n)
	if !ok {
		return false
	}
	return p.Get()
}

// ApplyExpectation puts one pin into the mode its expectation names.
func ApplyExpectation(a Adapter, e linkcfg.PinExpectation) {
	switch e.Mode {
	case linkcfg.ModeOutputHigh:
		a.ApplyOutputDrivenHigh(e.Pin)
	case linkcfg.ModeInputPullUp:
		a.ApplyInputPulledHigh(e.Pin)
	}
}

// ApplyProfile drives TX high and pulls RX high.
func ApplyProfile(a Adapter, p linkcfg.LinkProfile) {
	for _, e := range p.Expectations() {
		ApplyExpectation(a, e)
	}
}

// Check reads every expectation of p and reports which ones hold.
func Check(a Adapter, p linkcfg.LinkProfile) (ok [2]bool) {
	for i, e := range p.Expectations() {
		ok[i] = a.ReadLevel(e.Pin) == e.Level
	}
	return ok
}
