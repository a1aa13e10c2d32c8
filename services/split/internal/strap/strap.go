// Package strap samples the identity strap pin and scores a window of
// readings.
package strap

import "splitlink-go/x/timex"

const (
	// WindowSize is the number of readings taken during resolution.
	WindowSize = 5
	// Quorum is both the majority threshold and the minimum number of
	// agreeing consecutive pairs for a window to count as stable.
	Quorum = 3
	// DefaultSettleMs is the minimum spacing between two samples.
	DefaultSettleMs = 20
)

// Reading is one timestamped strap level.
type Reading struct {
	Level bool
	AtMs  int64
}

// Input is the read side of a GPIO.
type Input interface {
	Get() bool
}

// Sampler reads the strap pin. It never sleeps; the caller spaces calls.
type Sampler struct {
	in  Input
	clk timex.Clock
}

func NewSampler(in Input, clk timex.Clock) *Sampler {
	return &Sampler{in: in, clk: clk}
}

// Sample returns the instantaneous level and the clock time of the read.
func (s *Sampler) Sample() Reading {
	return Reading{Level: s.in.Get(), AtMs: s.clk.NowMs()}
}
