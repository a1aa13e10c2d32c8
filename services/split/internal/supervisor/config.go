package supervisor

import (
	"splitlink-go/errcode"
	"splitlink-go/services/split/internal/linkcfg"
	"splitlink-go/services/split/internal/strap"
	"splitlink-go/x/mathx"
)

// FlipPolicy picks the reaction to a strap that disagrees with the
// committed role. There is no default.
type FlipPolicy uint8

const (
	FlipUnset FlipPolicy = iota
	// FlipReconfigure adopts the new role and rewires the link for it.
	FlipReconfigure
	// FlipDefend keeps the committed role and re-applies its pins.
	FlipDefend
)

func (p FlipPolicy) String() string {
	switch p {
	case FlipReconfigure:
		return "reconfigure"
	case FlipDefend:
		return "defend"
	default:
		return "unset"
	}
}

// Default cadences, in Tick calls.
const (
	DefaultAliveEvery  = 5000
	DefaultVerifyEvery = 10000
)

type Config struct {
	Revision    linkcfg.Revision
	HighIsLeft  bool  // strap high means the left half
	SettleMs    int64 // spacing between boot samples
	AliveEvery  uint32
	VerifyEvery uint32
	OnRoleFlip  FlipPolicy
}

// DefaultConfig fills every knob except OnRoleFlip, which callers must set.
func DefaultConfig() Config {
	return Config{
		Revision:    linkcfg.Rev4_1,
		HighIsLeft:  true,
		SettleMs:    strap.DefaultSettleMs,
		AliveEvery:  DefaultAliveEvery,
		VerifyEvery: DefaultVerifyEvery,
	}
}

// Normalize replaces zero knobs with defaults and clamps the rest.
func (c Config) Normalize() Config {
	if c.SettleMs <= 0 {
		c.SettleMs = strap.DefaultSettleMs
	}
	c.SettleMs = mathx.Clamp(c.SettleMs, 1, 1000)
	if c.AliveEvery == 0 {
		c.AliveEvery = DefaultAliveEvery
	}
	if c.VerifyEvery == 0 {
		c.VerifyEvery = DefaultVerifyEvery
	}
	c.AliveEvery = mathx.Clamp(c.AliveEvery, 1, 1<<24)
	c.VerifyEvery = mathx.Clamp(c.VerifyEvery, 1, 1<<24)
	return c
}

func (c Config) Validate() error {
	switch {
	case c.OnRoleFlip != FlipReconfigure && c.OnRoleFlip != FlipDefend:
		return &errcode.E{C: errcode.InvalidConfig, Op: "supervisor", Msg: "on_role_flip must be reconfigure or defend"}
	case c.Revision >= linkcfg.RevisionCount:
		return &errcode.E{C: errcode.InvalidConfig, Op: "supervisor", Msg: "unknown revision"}
	}
	return nil
}
