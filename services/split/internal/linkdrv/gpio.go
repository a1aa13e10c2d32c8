package linkdrv

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// PinFactory supplies GPIO pins by GP number.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// Critical runs fn with interrupt-context pin access excluded.
type Critical func(fn func())

// NoCritical runs fn directly. Only for single-context hosts.
func NoCritical(fn func()) { fn() }
