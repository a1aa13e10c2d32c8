// Package linkcfg maps a committed half and a board revision to the serial
// link wiring. Every function here is pure.
package linkcfg

import "splitlink-go/services/split/internal/role"

// Pin is an RP2040 GPIO number.
type Pin uint8

// Driver names the UART peripheral instance that owns the link.
type Driver string

const (
	DriverUART0 Driver = "uart0"
	DriverUART1 Driver = "uart1"
)

// LinkProfile is the concrete wiring of the link for one half.
type LinkProfile struct {
	TX          Pin
	RX          Pin
	Driver      Driver
	Baud        uint32
	TxTimeoutMs uint16
	RxTimeoutMs uint16
}

// Mode is the electrical configuration expected of a link pin.
type Mode uint8

const (
	ModeOutputHigh Mode = iota
	ModeInputPullUp
)

func (m Mode) String() string {
	if m == ModeInputPullUp {
		return "in-pu"
	}
	return "out-hi"
}

// PinExpectation is what a verify pass reads back from one pin.
type PinExpectation struct {
	Pin   Pin
	Mode  Mode
	Level bool
}

// Expectations returns the TX and RX expectations, in that order. An idle
// UART line is high on both ends.
func (p LinkProfile) Expectations() [2]PinExpectation {
	return [2]PinExpectation{
		{Pin: p.TX, Mode: ModeOutputHigh, Level: true},
		{Pin: p.RX, Mode: ModeInputPullUp, Level: true},
	}
}

// Revision identifies a board wiring.
type Revision uint8

const (
	Rev4_1 Revision = iota
	RevPicoBench

	RevisionCount
)

func (r Revision) String() string {
	switch r {
	case Rev4_1:
		return "rev4_1"
	case RevPicoBench:
		return "pico_bench"
	default:
		return "unknown"
	}
}

// Supported has one slot per declared revision. Board setups index it with
// their revision constant so an undeclared revision fails to compile:
//
//	var _ = linkcfg.Supported{}[SelectedRevision]
type Supported [RevisionCount]struct{}

// profiles is indexed by [revision][role].
var profiles = [RevisionCount][2]LinkProfile{
	Rev4_1: {
		role.Left:  {TX: 4, RX: 5, Driver: DriverUART1, Baud: 921600, TxTimeoutMs: 20, RxTimeoutMs: 20},
		role.Right: {TX: 24, RX: 25, Driver: DriverUART1, Baud: 921600, TxTimeoutMs: 20, RxTimeoutMs: 20},
	},
	RevPicoBench: {
		role.Left:  {TX: 0, RX: 1, Driver: DriverUART0, Baud: 115200, TxTimeoutMs: 50, RxTimeoutMs: 50},
		role.Right: {TX: 8, RX: 9, Driver: DriverUART1, Baud: 115200, TxTimeoutMs: 50, RxTimeoutMs: 50},
	},
}

// Resolve returns the profile for a half on a revision. Revisions outside
// the declared set are rejected at build time by Supported; a runtime value
// out of range panics with an index error.
func Resolve(r role.Role, rev Revision) LinkProfile {
	return profiles[rev][r]
}
