package linkdrv_test

import (
	"testing"

	"splitlink-go/services/split/internal/linkcfg"
	"splitlink-go/services/split/internal/linkdrv"
	"splitlink-go/services/split/internal/platform"
	"splitlink-go/services/split/internal/role"
)

func TestApplyProfileSetsModes(t *testing.T) {
	b := platform.NewSimBoard()
	a := linkdrv.NewPinAdapter(b.HostPinFactory, b.Critical)
	p := linkcfg.Resolve(role.Left, linkcfg.Rev4_1)

	linkdrv.ApplyProfile(a, p)

	tx, rx := b.Pin(int(p.TX)), b.Pin(int(p.RX))
	if !tx.IsOutput() || !tx.Latch() {
		t.Fatal("tx not driven high")
	}
	if rx.IsOutput() || rx.PullMode() != linkdrv.PullUp {
		t.Fatal("rx not pulled up input")
	}
	if ok := linkdrv.Check(a, p); !ok[0] || !ok[1] {
		t.Fatalf("check after apply: %v", ok)
	}
}

func TestReapplyIsIdempotent(t *testing.T) {
	b := platform.NewSimBoard()
	a := linkdrv.NewPinAdapter(b.HostPinFactory, b.Critical)
	p := linkcfg.Resolve(role.Right, linkcfg.RevPicoBench)

	linkdrv.ApplyProfile(a, p)
	first := [2]bool{a.ReadLevel(p.TX), a.ReadLevel(p.RX)}
	linkdrv.ApplyProfile(a, p)
	second := [2]bool{a.ReadLevel(p.TX), a.ReadLevel(p.RX)}

	if first != second || first != [2]bool{true, true} {
		t.Fatalf("levels changed across re-apply: %v -> %v", first, second)
	}
}

func TestUnknownPinReadsLow(t *testing.T) {
	b := platform.NewSimBoard()
	a := linkdrv.NewPinAdapter(b.HostPinFactory, nil)

	a.ApplyOutputDrivenHigh(200) // out of range: ignored
	if a.ReadLevel(200) {
		t.Fatal("unknown pin should read low")
	}
}

func TestReadLevelSeesInjectedFault(t *testing.T) {
	b := platform.NewSimBoard()
	a := linkdrv.NewPinAdapter(b.HostPinFactory, b.Critical)
	a.ApplyOutputDrivenHigh(4)

	b.Pin(4).Glitch(1)
	if a.ReadLevel(4) {
		t.Fatal("glitched read should be low")
	}
	if !a.ReadLevel(4) {
		t.Fatal("glitch should last one read")
	}
}

// An interrupt raised between the mode write and the level write must not
// observe the half-applied pin.
func TestApplyIsAtomicToISR(t *testing.T) {
	cases := []struct {
		name     string
		critical bool
		wantTorn bool
	}{
		{"critical", true, false},
		{"bare", false, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := platform.NewSimBoard()
			crit := linkdrv.Critical(linkdrv.NoCritical)
			if c.critical {
				crit = b.Critical
			}
			a := linkdrv.NewPinAdapter(b.HostPinFactory, crit)

			tx, rx := b.Pin(4), b.Pin(5)
			torn, fired := false, 0
			b.OnInterrupt(func() {
				fired++
				if tx.Midway() || rx.Midway() {
					torn = true
				}
			})

			a.ApplyOutputDrivenHigh(4)
			a.ApplyInputPulledHigh(5)

			if fired != 2 {
				t.Fatalf("interrupt ran %d times, want 2", fired)
			}
			if torn != c.wantTorn {
				t.Fatalf("torn=%v want %v", torn, c.wantTorn)
			}
		})
	}
}
