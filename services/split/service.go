// Package split owns half-identity resolution and the link pin supervisor
// for one keyboard half.
package split

import (
	"iter"
	"time"

	"splitlink-go/bus"
	"splitlink-go/errcode"
	"splitlink-go/services/split/diag"
	"splitlink-go/services/split/internal/linkdrv"
	"splitlink-go/services/split/internal/platform"
	"splitlink-go/services/split/internal/platform/setups"
	"splitlink-go/services/split/internal/strap"
	"splitlink-go/services/split/internal/supervisor"
	"splitlink-go/types"
	"splitlink-go/x/timex"
)

// AliveProbe reports peer activity on the link.
type AliveProbe interface {
	Connected() bool
}

type Options struct {
	Conn  *bus.Connection // profile and status publication; optional
	Alive AliveProbe      // optional
	Clock timex.Clock     // defaults to a monotonic clock
	Yield func()          // runs between boot samples; defaults to a 1 ms sleep
}

// Service wires the board setup to a supervisor and its diagnostics sink.
type Service struct {
	setup setups.Setup
	sup   *supervisor.Supervisor
	sink  *diag.Sink
	yield func()
}

// New builds the service for the board selected at build time.
func New(opts Options) (*Service, error) {
	return newService(setups.Selected, platform.Default(), opts)
}

func newService(setup setups.Setup, board platform.Board, opts Options) (*Service, error) {
	if opts.Clock == nil {
		opts.Clock = timex.NewMono()
	}
	if opts.Yield == nil {
		opts.Yield = func() { time.Sleep(time.Millisecond) }
	}

	sp, ok := board.Pins.ByNumber(setup.StrapPin)
	if !ok {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "split", Msg: "strap"}
	}
	if err := sp.ConfigureInput(setup.StrapPull); err != nil {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "split", Msg: "strap", Err: err}
	}

	var vbus strap.Input
	if setup.VBusPin != setups.NoPin {
		vp, ok := board.Pins.ByNumber(setup.VBusPin)
		if !ok {
			return nil, &errcode.E{C: errcode.UnknownPin, Op: "split", Msg: "vbus"}
		}
		if err := vp.ConfigureInput(linkdrv.PullNone); err != nil {
			return nil, &errcode.E{C: errcode.InvalidConfig, Op: "split", Msg: "vbus", Err: err}
		}
		vbus = vp
	}

	deps := supervisor.Deps{
		Strap: sp,
		VBus:  vbus,
		Link:  linkdrv.NewPinAdapter(board.Pins, board.Critical),
		Clock: opts.Clock,
		Conn:  opts.Conn,
	}
	if opts.Alive != nil {
		deps.Alive = opts.Alive
	}
	sink := diag.NewSink(setup.SinkCap)
	deps.Diag = sink

	sup, err := supervisor.New(setup.Supervisor, deps)
	if err != nil {
		return nil, err
	}
	return &Service{setup: setup, sup: sup, sink: sink, yield: opts.Yield}, nil
}

// PreInit resolves the role and applies the link profile. It returns after
// exactly five strap samples, about five settle intervals.
func (s *Service) PreInit() { s.sup.Boot(s.yield) }

func (s *Service) PostInit() { s.sup.PostInit() }
func (s *Service) Tick()     { s.sup.Tick() }

// Trusted reports whether the applied profile passed its last check.
func (s *Service) Trusted() bool { return s.sup.Trusted() }

// Profile returns the applied profile as published on the bus.
func (s *Service) Profile() types.LinkProfile { return s.sup.LinkProfile() }

func (s *Service) Status() types.LinkStatus { return s.sup.LinkStatus() }

func (s *Service) State() string { return s.sup.State().String() }

func (s *Service) Sink() *diag.Sink { return s.sink }

// Drain yields pending diagnostics, oldest first.
func (s *Service) Drain() iter.Seq[diag.Event] { return s.sink.Drain() }

// Board returns the setup name.
func (s *Service) Board() string { return s.setup.Name }

// ConsoleMin is the default minimum severity for the console.
func (s *Service) ConsoleMin() diag.Severity { return s.setup.ConsoleMin }

// ConsoleEvery is the console drain period.
func (s *Service) ConsoleEvery() time.Duration {
	return time.Duration(s.setup.ConsoleMs) * time.Millisecond
}
