//go:build rp2040

package platform

import (
	"machine"
	"runtime/interrupt"

	"splitlink-go/services/split/internal/linkdrv"
)

// Default binds GP0..GP28 and masks interrupts around pin writes.
func Default() Board {
	return Board{Pins: rp2PinFactory{}, Critical: critical}
}

func critical(fn func()) {
	state := interrupt.Disable()
	fn()
	interrupt.Restore(state)
}

type rp2PinFactory struct{}

func (rp2PinFactory) ByNumber(n int) (linkdrv.GPIOPin, bool) {
	// Constrain to RP2040 user GPIOs (GP0..GP28).
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull linkdrv.Pull) error {
	var mode machine.PinMode
	switch pull {
	case linkdrv.PullUp:
		mode = machine.PinInputPullup
	case linkdrv.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Number() int    { return r.n }
