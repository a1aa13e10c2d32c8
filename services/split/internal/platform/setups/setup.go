package setups

import (
	"splitlink-go/services/split/diag"
	"splitlink-go/services/split/internal/linkcfg"
	"splitlink-go/services/split/internal/linkdrv"
	"splitlink-go/services/split/internal/supervisor"
)

// NoPin marks an optional GPIO as absent.
const NoPin = -1

// Setup is the per-board wiring and tuning of the split subsystem.
type Setup struct {
	Name       string
	StrapPin   int
	StrapPull  linkdrv.Pull
	VBusPin    int // USB VBUS sense, NoPin if not wired
	Supervisor supervisor.Config
	SinkCap    int
	ConsoleMin diag.Severity
	ConsoleMs  int // console drain period
}

// Crkbd41 is the Corne rev4.1 RP2040 board. The strap is resistor-wired,
// so no internal pull is used.
func Crkbd41() Setup {
	c := supervisor.DefaultConfig()
	c.Revision = linkcfg.Rev4_1
	c.HighIsLeft = true
	c.OnRoleFlip = supervisor.FlipDefend
	return Setup{
		Name:       "crkbd_rev4_1",
		StrapPin:   21,
		StrapPull:  linkdrv.PullNone,
		VBusPin:    13,
		Supervisor: c,
		SinkCap:    32,
		ConsoleMin: diag.Warning,
		ConsoleMs:  250,
	}
}

// PicoBench is two Raspberry Pi Picos cross-wired on a bench. The strap is
// a jumper to ground on the right board, so the pin idles high via pull-up.
func PicoBench() Setup {
	c := supervisor.DefaultConfig()
	c.Revision = linkcfg.RevPicoBench
	c.HighIsLeft = true
	c.OnRoleFlip = supervisor.FlipReconfigure
	c.AliveEvery = 500
	c.VerifyEvery = 1000
	return Setup{
		Name:       "pico_bench",
		StrapPin:   22,
		StrapPull:  linkdrv.PullUp,
		VBusPin:    24,
		Supervisor: c,
		SinkCap:    64,
		ConsoleMin: diag.Info,
		ConsoleMs:  100,
	}
}
