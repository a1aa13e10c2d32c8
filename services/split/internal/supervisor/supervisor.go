// Package supervisor resolves which half this is and keeps the link pins
// configured for it.
//
// The supervisor is driven from a cooperative loop. Every exported method
// returns after bounded work; nothing in here sleeps or waits on I/O.
package supervisor

import (
	"splitlink-go/bus"
	"splitlink-go/errcode"
	"splitlink-go/services/split/diag"
	"splitlink-go/services/split/internal/linkcfg"
	"splitlink-go/services/split/internal/linkdrv"
	"splitlink-go/services/split/internal/role"
	"splitlink-go/services/split/internal/strap"
	"splitlink-go/types"
	"splitlink-go/x/timex"
)

// AliveProbe reports whether the peer half is talking to us.
type AliveProbe interface {
	Connected() bool
}

// Deps are the collaborators the supervisor drives. Strap, Link, Clock and
// Diag are required.
type Deps struct {
	Strap strap.Input
	VBus  strap.Input // optional: high on the USB-powered half
	Link  linkdrv.Adapter
	Clock timex.Clock
	Diag  diag.Recorder
	Conn  *bus.Connection // optional: profile and status publication
	Alive AliveProbe      // optional

	// OnTransition observes every state change. Called synchronously.
	OnTransition func(from, to State)
}

type Supervisor struct {
	cfg     Config
	d       Deps
	sampler *strap.Sampler

	state  State
	win    strap.Window
	lastMs int64

	role      role.Role
	committed bool
	profile   linkcfg.LinkProfile
	gen       uint32
	trusted   bool

	connected bool
	master    bool

	stats Stats
	scr   []byte
}

// New validates cfg after normalising it.
func New(cfg Config, d Deps) (*Supervisor, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.Strap == nil || d.Link == nil || d.Clock == nil || d.Diag == nil {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "supervisor", Msg: "missing dependency"}
	}
	return &Supervisor{
		cfg:     cfg,
		d:       d,
		sampler: strap.NewSampler(d.Strap, d.Clock),
		scr:     make([]byte, 0, 96),
	}, nil
}

func (s *Supervisor) Config() Config { return s.cfg }
func (s *Supervisor) State() State   { return s.state }
func (s *Supervisor) Stats() Stats   { return s.stats }

// Role returns the committed role. ok is false until Resolving completes.
func (s *Supervisor) Role() (r role.Role, ok bool) { return s.role, s.committed }

// Profile returns the applied profile and its generation. The generation
// increases each time the profile is written to the pins.
func (s *Supervisor) Profile() (linkcfg.LinkProfile, uint32) { return s.profile, s.gen }

// Trusted reports whether the last verification of the applied profile
// passed.
func (s *Supervisor) Trusted() bool { return s.trusted }

func (s *Supervisor) Connected() bool { return s.connected }
func (s *Supervisor) Master() bool    { return s.master }

// ---- Resolving ----

// Start leaves Uninitialized. It only has an effect once per boot.
func (s *Supervisor) Start() {
	if s.state != Uninitialized {
		return
	}
	s.win.Reset()
	s.to(Resolving)
}

// Step takes at most one strap sample. The first sample is taken at once,
// later ones once the settle interval has elapsed. Step reports true on
// the call that commits a role.
func (s *Supervisor) Step() bool {
	if s.state != Resolving {
		return false
	}
	if s.win.Len() > 0 && !timex.Elapsed(s.d.Clock.NowMs(), s.lastMs, s.cfg.SettleMs) {
		return false
	}
	r := s.sampler.Sample()
	s.win.Push(r)
	s.lastMs = r.AtMs
	s.stats.Samples++
	if !s.win.Full() {
		return false
	}
	s.commit(s.win.Confidence())
	return true
}

// Boot runs Resolving to completion. yield runs between unsuccessful steps
// and must let the clock advance (a short sleep on hardware).
func (s *Supervisor) Boot(yield func()) {
	s.Start()
	for s.state == Resolving {
		if s.Step() {
			return
		}
		if yield != nil {
			yield()
		}
	}
}

func (s *Supervisor) commit(c strap.Confidence) {
	s.role = role.FromLevel(c.Majority, s.cfg.HighIsLeft)
	s.committed = true
	s.profile = linkcfg.Resolve(s.role, s.cfg.Revision)
	if s.d.VBus != nil {
		s.master = s.d.VBus.Get()
	}

	sev, code := diag.Info, errcode.RoleCommitted
	if !c.Stable {
		sev, code = diag.Warning, errcode.TransientInstability
	}
	s.record(sev, code, s.commitSummary(c))

	s.apply()
	s.to(Configured)
	s.settle(linkdrv.Check(s.d.Link, s.profile), errcode.RoleCommitted)
	s.publish()
}

// ---- Periodic ----

// Tick is the cooperative housekeeping hook. Before a role is committed it
// advances Resolving; afterwards it runs the alive and verify checks on
// their own cadences.
func (s *Supervisor) Tick() {
	switch s.state {
	case Uninitialized:
		s.Start()
		return
	case Resolving:
		s.Step()
		return
	}
	s.stats.Ticks++
	n := s.stats.Ticks
	if n%uint64(s.cfg.AliveEvery) == 0 {
		s.alive()
	}
	if n%uint64(s.cfg.VerifyEvery) == 0 {
		s.Verify()
	}
}

// Verify re-samples the strap once and reads back both link pins. A clean
// pass from Configured is silent.
func (s *Supervisor) Verify() {
	if !s.committed {
		return
	}
	prev := s.state
	s.stats.Verifies++
	s.to(Verifying)

	now := role.FromLevel(s.sampler.Sample().Level, s.cfg.HighIsLeft)
	flipped := now != s.role
	ok := linkdrv.Check(s.d.Link, s.profile)

	if !flipped && ok[0] && ok[1] {
		s.trusted = true
		s.to(Configured)
		if prev == Degraded {
			s.stats.Recoveries++
			s.record(diag.Info, errcode.LinkRecovered, "cause=retry")
			s.publish()
		}
		return
	}

	s.trusted = false
	s.to(Reconfiguring)
	if flipped {
		s.flip(now)
		s.settle(linkdrv.Check(s.d.Link, s.profile), errcode.UnexpectedRoleFlip)
	} else {
		s.settle(ok, errcode.PinDrift)
	}
	s.publish()
}

func (s *Supervisor) flip(now role.Role) {
	s.stats.Flips++
	b := append(s.scr[:0], "old="...)
	b = append(b, s.role.String()...)
	b = append(b, " new="...)
	b = append(b, now.String()...)
	b = append(b, " policy="...)
	b = append(b, s.cfg.OnRoleFlip.String()...)
	s.scr = b
	s.record(diag.Critical, errcode.UnexpectedRoleFlip, string(b))

	if s.cfg.OnRoleFlip == FlipReconfigure {
		old := s.profile
		s.role = now
		s.profile = linkcfg.Resolve(now, s.cfg.Revision)
		s.release(old)
	}
	s.apply()
}

// release parks pins of a previous profile that the current one no longer
// uses as pulled-up inputs so they cannot fight the peer.
func (s *Supervisor) release(old linkcfg.LinkProfile) {
	for _, p := range [2]linkcfg.Pin{old.TX, old.RX} {
		if p != s.profile.TX && p != s.profile.RX {
			s.d.Link.ApplyInputPulledHigh(p)
		}
	}
}

// settle finishes a configuration pass. ok holds the TX and RX checks. Any
// failing pin is reported, re-applied alone and checked once more; the
// outcome decides between Configured and Degraded. cause names the pass in
// the recovery event.
func (s *Supervisor) settle(ok [2]bool, cause errcode.Code) {
	if ok[0] && ok[1] {
		s.trusted = true
		s.to(Configured)
		if cause == errcode.UnexpectedRoleFlip {
			s.stats.Recoveries++
			s.record(diag.Info, errcode.LinkRecovered, "cause="+string(cause))
		}
		return
	}

	s.to(Reconfiguring)
	exp := s.profile.Expectations()
	for i, good := range ok {
		if good {
			continue
		}
		s.stats.Drifts++
		s.record(diag.Warning, errcode.PinDrift, s.driftMsg(exp[i], !exp[i].Level))
		linkdrv.ApplyExpectation(s.d.Link, exp[i])
	}
	s.gen++

	ok = linkdrv.Check(s.d.Link, s.profile)
	if ok[0] && ok[1] {
		s.trusted = true
		s.stats.Recoveries++
		s.to(Configured)
		s.record(diag.Info, errcode.LinkRecovered, "cause="+string(cause))
		return
	}
	s.trusted = false
	s.stats.Failures++
	s.to(Degraded)
	s.record(diag.Critical, errcode.PersistentLinkFailure, s.levelsMsg())
}

// Reapply writes the current profile to the pins again and verifies it.
func (s *Supervisor) Reapply() {
	if !s.committed {
		return
	}
	s.apply()
	s.settle(linkdrv.Check(s.d.Link, s.profile), errcode.RoleCommitted)
	s.publish()
}

func (s *Supervisor) apply() {
	linkdrv.ApplyProfile(s.d.Link, s.profile)
	s.gen++
}

// ---- Alive ----

func (s *Supervisor) alive() {
	changed := false
	if s.d.Alive != nil {
		if c := s.d.Alive.Connected(); c != s.connected {
			s.connected = c
			changed = true
			if c {
				s.record(diag.Info, errcode.LinkUp, "peer=connected")
			} else {
				s.record(diag.Warning, errcode.LinkDown, "peer=lost")
			}
		}
	}
	if s.d.VBus != nil {
		if m := s.d.VBus.Get(); m != s.master {
			s.master = m
			changed = true
			s.record(diag.Info, errcode.MasterChanged, s.masterMsg())
		}
	}
	if changed {
		s.publishStatus()
	}
}

// PostInit republishes the committed profile for late subscribers and
// records a one-line status of the link pins.
func (s *Supervisor) PostInit() {
	if !s.committed {
		return
	}
	s.record(diag.Info, errcode.Status, s.statusMsg())
	s.publish()
}

// ---- Output ----

func (s *Supervisor) to(next State) {
	if next == s.state {
		return
	}
	prev := s.state
	s.state = next
	if s.d.OnTransition != nil {
		s.d.OnTransition(prev, next)
	}
}

func (s *Supervisor) record(sev diag.Severity, code errcode.Code, msg string) {
	s.d.Diag.Record(diag.Event{AtMs: s.d.Clock.NowMs(), Severity: sev, Code: code, Msg: msg})
}

// LinkProfile renders the applied profile as a bus payload.
func (s *Supervisor) LinkProfile() types.LinkProfile {
	return types.LinkProfile{
		Gen:         s.gen,
		Role:        s.role.String(),
		Driver:      string(s.profile.Driver),
		TX:          int(s.profile.TX),
		RX:          int(s.profile.RX),
		Baud:        s.profile.Baud,
		TxTimeoutMs: s.profile.TxTimeoutMs,
		RxTimeoutMs: s.profile.RxTimeoutMs,
		Trusted:     s.trusted,
	}
}

// LinkStatus renders the supervisor state as a bus payload.
func (s *Supervisor) LinkStatus() types.LinkStatus {
	link := types.LinkDown
	switch {
	case s.state == Degraded:
		link = types.LinkDegraded
	case s.trusted && s.connected:
		link = types.LinkUp
	}
	return types.LinkStatus{
		Link:      link,
		State:     s.state.String(),
		Role:      s.role.String(),
		Connected: s.connected,
		Master:    s.master,
		TS:        s.d.Clock.NowMs(),
	}
}

var (
	topicProfile = bus.T(types.TokSplit, types.TokLink, types.TokProfile)
	topicStatus  = bus.T(types.TokSplit, types.TokLink, types.TokStatus)
)

// publish sends the profile and status, both retained.
func (s *Supervisor) publish() {
	s.publishProfile()
	s.publishStatus()
}

func (s *Supervisor) publishProfile() {
	if s.d.Conn == nil {
		return
	}
	s.d.Conn.Publish(s.d.Conn.NewMessage(topicProfile, s.LinkProfile(), true))
}

func (s *Supervisor) publishStatus() {
	if s.d.Conn == nil {
		return
	}
	s.d.Conn.Publish(s.d.Conn.NewMessage(topicStatus, s.LinkStatus(), true))
}
