package supervisor

import (
	"strings"
	"testing"
	"time"

	"splitlink-go/bus"
	"splitlink-go/errcode"
	"splitlink-go/services/split/diag"
	"splitlink-go/services/split/internal/linkcfg"
	"splitlink-go/services/split/internal/linkdrv"
	"splitlink-go/services/split/internal/platform"
	"splitlink-go/services/split/internal/role"
	"splitlink-go/services/split/internal/strap"
	"splitlink-go/types"
	"splitlink-go/x/timex"
)

const (
	strapPin = 21
	vbusPin  = 13
)

// ---- Test rig ----

type fakeAlive struct {
	up    bool
	calls int
}

func (f *fakeAlive) Connected() bool { f.calls++; return f.up }

type rig struct {
	t     *testing.T
	board *platform.SimBoard
	clk   *timex.Fake
	sink  *diag.Sink
	alive *fakeAlive
	conn  *bus.Connection
	sup   *Supervisor
	trans []State
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()
	b := platform.NewSimBoard()
	r := &rig{
		t:     t,
		board: b,
		clk:   timex.NewFake(1000, 1),
		sink:  diag.NewSink(64),
		alive: &fakeAlive{},
		conn:  bus.NewBus(16).NewConnection("test"),
	}
	sup, err := New(cfg, Deps{
		Strap:        b.Pin(strapPin),
		VBus:         b.Pin(vbusPin),
		Link:         linkdrv.NewPinAdapter(b.HostPinFactory, b.Critical),
		Clock:        r.clk,
		Diag:         r.sink,
		Conn:         r.conn,
		Alive:        r.alive,
		OnTransition: func(_, to State) { r.trans = append(r.trans, to) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.sup = sup
	return r
}

func cfgWith(p FlipPolicy) Config {
	c := DefaultConfig()
	c.OnRoleFlip = p
	return c
}

// boot scripts the strap and runs Resolving to completion.
func (r *rig) boot(levels ...bool) {
	r.t.Helper()
	r.board.Pin(strapPin).Script(levels...)
	r.sup.Boot(nil)
	if r.sup.State() != Configured {
		r.t.Fatalf("boot ended in %v", r.sup.State())
	}
}

func (r *rig) events() []diag.Event {
	var out []diag.Event
	for ev := range r.sink.Drain() {
		out = append(out, ev)
	}
	return out
}

func (r *rig) reset() {
	r.events()
	r.trans = nil
}

func count(evs []diag.Event, code errcode.Code) int {
	n := 0
	for _, e := range evs {
		if e.Code == code {
			n++
		}
	}
	return n
}

func find(t *testing.T, evs []diag.Event, code errcode.Code) diag.Event {
	t.Helper()
	for _, e := range evs {
		if e.Code == code {
			return e
		}
	}
	t.Fatalf("no %s event in %+v", code, evs)
	return diag.Event{}
}

func sameStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---- Construction ----

func TestNewRejectsUnsetFlipPolicy(t *testing.T) {
	b := platform.NewSimBoard()
	_, err := New(DefaultConfig(), Deps{
		Strap: b.Pin(strapPin),
		Link:  linkdrv.NewPinAdapter(b.HostPinFactory, b.Critical),
		Clock: timex.NewFake(0, 1),
		Diag:  diag.NewSink(4),
	})
	if errcode.Of(err) != errcode.InvalidConfig {
		t.Fatalf("err=%v", err)
	}
}

func TestNewRejectsMissingDeps(t *testing.T) {
	_, err := New(cfgWith(FlipDefend), Deps{})
	if errcode.Of(err) != errcode.InvalidConfig {
		t.Fatalf("err=%v", err)
	}
}

func TestConfigNormalize(t *testing.T) {
	c := Config{SettleMs: 50000, OnRoleFlip: FlipDefend}.Normalize()
	if c.SettleMs != 1000 || c.AliveEvery != DefaultAliveEvery || c.VerifyEvery != DefaultVerifyEvery {
		t.Fatalf("normalized %+v", c)
	}
	if c := (Config{}).Normalize(); c.SettleMs != strap.DefaultSettleMs {
		t.Fatalf("zero settle -> %d", c.SettleMs)
	}
}

// ---- Resolving ----

func TestBootStableHigh(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.boot(true, true, true, true, true)

	if got, ok := r.sup.Role(); !ok || got != role.Left {
		t.Fatalf("role=%v ok=%v", got, ok)
	}
	p, gen := r.sup.Profile()
	if p != linkcfg.Resolve(role.Left, linkcfg.Rev4_1) || gen != 1 {
		t.Fatalf("profile %+v gen %d", p, gen)
	}
	if !r.sup.Trusted() || r.sup.Stats().Samples != 5 {
		t.Fatalf("trusted=%v samples=%d", r.sup.Trusted(), r.sup.Stats().Samples)
	}
	tx := r.board.Pin(4)
	if !tx.IsOutput() || !tx.Latch() {
		t.Fatal("left TX not driven high")
	}

	evs := r.events()
	e := find(t, evs, errcode.RoleCommitted)
	if e.Severity != diag.Info || e.Msg != "strap=11111 agree=4 stable role=left tx=4 rx=5 uart1@921600" {
		t.Fatalf("commit event %+v", e)
	}
	if count(evs, errcode.TransientInstability) != 0 {
		t.Fatal("stable boot reported instability")
	}
	if !sameStates(r.trans, []State{Resolving, Configured}) {
		t.Fatalf("transitions %v", r.trans)
	}
}

func TestBootAlternatingCommitsWithWarning(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.boot(true, false, true, false, true)

	if got, _ := r.sup.Role(); got != role.Left {
		t.Fatalf("role=%v", got)
	}
	e := find(t, r.events(), errcode.TransientInstability)
	if e.Severity != diag.Warning || !strings.HasPrefix(e.Msg, "strap=10101 agree=0 unstable role=left") {
		t.Fatalf("instability event %+v", e)
	}
	if r.sup.State() != Configured || r.sup.Stats().Samples != 5 {
		t.Fatalf("state=%v samples=%d", r.sup.State(), r.sup.Stats().Samples)
	}
}

func TestBootLowIsRight(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.boot(false, false, false, false, false)
	p, _ := r.sup.Profile()
	if got, _ := r.sup.Role(); got != role.Right || p.TX != 24 || p.RX != 25 {
		t.Fatalf("role=%v profile=%+v", got, p)
	}
}

// A commit whose first check fails is still a commit: Configured is
// entered before the repair pass decides the outcome.
func TestBootStuckTxDegradesAfterCommit(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.board.Pin(4).Stick(false)
	r.board.Pin(strapPin).Script(true, true, true, true, true)
	r.sup.Boot(nil)

	want := []State{Resolving, Configured, Reconfiguring, Degraded}
	if !sameStates(r.trans, want) {
		t.Fatalf("transitions %v, want %v", r.trans, want)
	}
	if r.sup.Stats().Samples != 5 || r.sup.Trusted() {
		t.Fatalf("samples=%d trusted=%v", r.sup.Stats().Samples, r.sup.Trusted())
	}
	evs := r.events()
	find(t, evs, errcode.RoleCommitted)
	if find(t, evs, errcode.PersistentLinkFailure).Severity != diag.Critical {
		t.Fatal("failure not Critical")
	}
}

func TestBootRepairReportsCommitCause(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.board.Pin(4).Glitch(1)
	r.boot(true, true, true, true, true)

	want := []State{Resolving, Configured, Reconfiguring, Configured}
	if !sameStates(r.trans, want) {
		t.Fatalf("transitions %v, want %v", r.trans, want)
	}
	if e := find(t, r.events(), errcode.LinkRecovered); e.Msg != "cause=role_committed" {
		t.Fatalf("recovery event %+v", e)
	}
}

// Every 5-sample sequence commits after exactly five samples, picks the
// majority and ends Configured.
func TestBootAllSequences(t *testing.T) {
	for n := 0; n < 1<<strap.WindowSize; n++ {
		levels := make([]bool, strap.WindowSize)
		ones := 0
		for i := range levels {
			levels[i] = n&(1<<i) != 0
			if levels[i] {
				ones++
			}
		}
		r := newRig(t, cfgWith(FlipDefend))
		r.boot(levels...)

		want := role.Right
		if ones >= strap.Quorum {
			want = role.Left
		}
		got, _ := r.sup.Role()
		if got != want || r.sup.Stats().Samples != strap.WindowSize {
			t.Fatalf("%v: role=%v samples=%d", levels, got, r.sup.Stats().Samples)
		}
	}
}

func TestResolvingWaitsForSettle(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.clk = timex.NewFake(0, 0)
	r.sup.d.Clock = r.clk
	r.sup.sampler = strap.NewSampler(r.board.Pin(strapPin), r.clk)
	r.board.Pin(strapPin).Script(true)

	r.sup.Tick() // Uninitialized -> Resolving
	if r.sup.State() != Resolving {
		t.Fatalf("state=%v", r.sup.State())
	}
	r.sup.Tick() // first sample is immediate
	r.sup.Tick()
	if n := r.sup.Stats().Samples; n != 1 {
		t.Fatalf("samples=%d before settle", n)
	}
	r.clk.Advance(strap.DefaultSettleMs - 1)
	r.sup.Tick()
	if n := r.sup.Stats().Samples; n != 1 {
		t.Fatalf("samples=%d one ms early", n)
	}
	for i := 0; i < 4; i++ {
		r.clk.Advance(strap.DefaultSettleMs)
		r.sup.Tick()
	}
	if r.sup.State() != Configured || r.sup.Stats().Samples != 5 {
		t.Fatalf("state=%v samples=%d", r.sup.State(), r.sup.Stats().Samples)
	}
	// Further ticks never sample again for resolution.
	r.sup.Tick()
	if r.sup.Stats().Samples != 5 {
		t.Fatal("sampled after commit")
	}
}

// ---- Verifying ----

func TestVerifyHealthyIsSilent(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.boot(true)
	r.reset()

	r.sup.Verify()
	if evs := r.events(); len(evs) != 0 {
		t.Fatalf("healthy verify logged %+v", evs)
	}
	if !sameStates(r.trans, []State{Verifying, Configured}) {
		t.Fatalf("transitions %v", r.trans)
	}
}

func TestRoleFlipReconfigure(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.boot(false) // right
	r.reset()

	r.board.Pin(strapPin).Script(true)
	r.sup.Verify()

	evs := r.events()
	e := find(t, evs, errcode.UnexpectedRoleFlip)
	if e.Severity != diag.Critical || e.Msg != "old=right new=left policy=reconfigure" {
		t.Fatalf("flip event %+v", e)
	}
	if find(t, evs, errcode.LinkRecovered).Severity != diag.Info {
		t.Fatal("recovery not Info")
	}
	if !sameStates(r.trans, []State{Verifying, Reconfiguring, Configured}) {
		t.Fatalf("transitions %v", r.trans)
	}
	p, gen := r.sup.Profile()
	if got, _ := r.sup.Role(); got != role.Left || p.TX != 4 || gen != 2 {
		t.Fatalf("role=%v profile=%+v gen=%d", got, p, gen)
	}
	if old := r.board.Pin(24); old.IsOutput() {
		t.Fatal("old TX still driven")
	}
	if !r.board.Pin(4).IsOutput() {
		t.Fatal("new TX not driven")
	}
}

func TestRoleFlipDefend(t *testing.T) {
	r := newRig(t, cfgWith(FlipDefend))
	r.boot(false)
	r.reset()

	r.board.Pin(strapPin).Script(true)
	r.sup.Verify()

	e := find(t, r.events(), errcode.UnexpectedRoleFlip)
	if e.Severity != diag.Critical || e.Msg != "old=right new=left policy=defend" {
		t.Fatalf("flip event %+v", e)
	}
	p, gen := r.sup.Profile()
	if got, _ := r.sup.Role(); got != role.Right || p.TX != 24 || gen != 2 {
		t.Fatalf("role=%v profile=%+v gen=%d", got, p, gen)
	}
	if r.board.Pin(4).IsOutput() {
		t.Fatal("left TX touched under defend")
	}
	if r.sup.State() != Configured {
		t.Fatalf("state=%v", r.sup.State())
	}
}

// A single wrong read is caught by the next verify and repaired in the same
// call, touching only the drifted pin.
func TestPinDriftRepairedWithinOneVerify(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.boot(true)
	r.reset()

	tx, rx := r.board.Pin(4), r.board.Pin(5)
	txWrites, rxWrites := tx.Writes(), rx.Writes()
	tx.Glitch(1)

	r.sup.Verify()

	if !sameStates(r.trans, []State{Verifying, Reconfiguring, Configured}) {
		t.Fatalf("transitions %v", r.trans)
	}
	if tx.Writes() != txWrites+1 || rx.Writes() != rxWrites {
		t.Fatalf("writes tx %d->%d rx %d->%d", txWrites, tx.Writes(), rxWrites, rx.Writes())
	}
	evs := r.events()
	e := find(t, evs, errcode.PinDrift)
	if e.Severity != diag.Warning || e.Msg != "pin=4 mode=out-hi want=1 got=0" {
		t.Fatalf("drift event %+v", e)
	}
	if count(evs, errcode.PersistentLinkFailure) != 0 {
		t.Fatal("recoverable drift escalated")
	}
	if e := find(t, evs, errcode.LinkRecovered); e.Msg != "cause=pin_drift" {
		t.Fatalf("recovery event %+v", e)
	}
	if !r.sup.Trusted() {
		t.Fatal("not trusted after repair")
	}
}

func TestPinDriftAfterForeignReconfig(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.boot(true)
	r.reset()

	// Another owner repurposed RX as a pulled-down input.
	_ = r.board.Pin(5).ConfigureInput(linkdrv.PullDown)
	r.sup.Verify()

	if r.board.Pin(5).PullMode() != linkdrv.PullUp {
		t.Fatal("rx pull not restored")
	}
	e := find(t, r.events(), errcode.PinDrift)
	if e.Msg != "pin=5 mode=in-pu want=1 got=0" {
		t.Fatalf("drift event %+v", e)
	}
}

func TestDegradedRetriesUntilRecovered(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.boot(true)
	r.reset()

	tx := r.board.Pin(4)
	tx.Stick(false)

	r.sup.Verify()
	if r.sup.State() != Degraded || r.sup.Trusted() {
		t.Fatalf("state=%v trusted=%v", r.sup.State(), r.sup.Trusted())
	}
	e := find(t, r.events(), errcode.PersistentLinkFailure)
	if e.Severity != diag.Critical || !strings.HasPrefix(e.Msg, "tx=4:0 rx=5:1") {
		t.Fatalf("failure event %+v", e)
	}

	r.sup.Verify()
	if r.sup.State() != Degraded {
		t.Fatalf("state=%v after failed retry", r.sup.State())
	}
	if count(r.events(), errcode.PersistentLinkFailure) != 1 {
		t.Fatal("failed retry did not report again")
	}

	tx.Unstick()
	r.trans = nil
	r.sup.Verify()
	if r.sup.State() != Configured || !r.sup.Trusted() {
		t.Fatalf("state=%v after recovery", r.sup.State())
	}
	e = find(t, r.events(), errcode.LinkRecovered)
	if e.Msg != "cause=retry" {
		t.Fatalf("recovery event %+v", e)
	}
	if st := r.sup.Stats(); st.Failures != 2 || st.Drifts != 2 {
		t.Fatalf("stats %+v", st)
	}
}

func TestReapplyIdempotent(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.boot(true)
	r.reset()

	a := linkdrv.NewPinAdapter(r.board.HostPinFactory, r.board.Critical)
	before := [2]bool{a.ReadLevel(4), a.ReadLevel(5)}
	r.sup.Reapply()
	r.sup.Reapply()
	after := [2]bool{a.ReadLevel(4), a.ReadLevel(5)}

	if before != after {
		t.Fatalf("levels %v -> %v", before, after)
	}
	for _, e := range r.events() {
		if e.Severity == diag.Critical {
			t.Fatalf("critical after re-apply: %+v", e)
		}
	}
	if r.sup.State() != Configured {
		t.Fatalf("state=%v", r.sup.State())
	}
}

// ---- Cadences ----

func TestTickCadencesIndependent(t *testing.T) {
	c := cfgWith(FlipReconfigure)
	c.AliveEvery, c.VerifyEvery = 3, 5
	r := newRig(t, c)
	r.boot(true)

	for i := 0; i < 15; i++ {
		r.sup.Tick()
	}
	if r.alive.calls != 5 {
		t.Fatalf("alive checks=%d want 5", r.alive.calls)
	}
	if v := r.sup.Stats().Verifies; v != 3 {
		t.Fatalf("verifies=%d want 3", v)
	}
}

func TestAliveReportsChangesOnly(t *testing.T) {
	c := cfgWith(FlipReconfigure)
	c.AliveEvery, c.VerifyEvery = 1, 1000
	r := newRig(t, c)
	sub := r.conn.Subscribe(bus.T(types.TokSplit, types.TokLink, types.TokStatus))
	r.boot(true)
	r.reset()
	drainSub(sub)

	r.sup.Tick()
	if len(r.events()) != 0 {
		t.Fatal("steady state logged")
	}

	r.alive.up = true
	r.sup.Tick()
	if e := find(t, r.events(), errcode.LinkUp); e.Severity != diag.Info {
		t.Fatalf("link up %+v", e)
	}
	st := lastStatus(t, sub)
	if st.Link != types.LinkUp || !st.Connected {
		t.Fatalf("status %+v", st)
	}

	r.board.Pin(vbusPin).Drive(true)
	r.alive.up = false
	r.sup.Tick()
	evs := r.events()
	if find(t, evs, errcode.LinkDown).Severity != diag.Warning {
		t.Fatal("link down not a warning")
	}
	if find(t, evs, errcode.MasterChanged).Msg != "master=1" {
		t.Fatal("master change not reported")
	}
	st = lastStatus(t, sub)
	if st.Link != types.LinkDown || !st.Master {
		t.Fatalf("status %+v", st)
	}
}

// ---- Bus publication ----

func TestPublishesProfileRetained(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.boot(true)

	late := r.conn.Subscribe(bus.T(types.TokSplit, types.TokLink, types.TokProfile))
	select {
	case m := <-late.Channel():
		p := m.Payload.(types.LinkProfile)
		if p.Gen != 1 || p.Role != "left" || p.Driver != "uart1" || p.TX != 4 || p.Baud != 921600 || !p.Trusted {
			t.Fatalf("profile %+v", p)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no retained profile")
	}
}

func TestPostInitStatus(t *testing.T) {
	r := newRig(t, cfgWith(FlipReconfigure))
	r.board.Pin(vbusPin).Drive(true)
	r.boot(true)
	r.reset()

	r.sup.PostInit()
	e := find(t, r.events(), errcode.Status)
	if e.Severity != diag.Info || e.Msg != "role=left master=1 state=configured gen=1 tx=4:1 rx=5:1" {
		t.Fatalf("status event %+v", e)
	}
}

func drainSub(s *bus.Subscription) {
	for {
		select {
		case <-s.Channel():
		default:
			return
		}
	}
}

func lastStatus(t *testing.T, s *bus.Subscription) types.LinkStatus {
	t.Helper()
	var last *bus.Message
	for {
		select {
		case m := <-s.Channel():
			last = m
			continue
		default:
		}
		break
	}
	if last == nil {
		t.Fatal("no status published")
	}
	return last.Payload.(types.LinkStatus)
}
