//go:build rp2040

package main

import (
	"context"
	"machine"
	"time"

	"splitlink-go/bus"
	"splitlink-go/services/console"
	"splitlink-go/services/linkport"
	"splitlink-go/services/split"
	"splitlink-go/services/split/diag"
)

// alive forwards to the link port once it exists; until then the peer is
// reported as absent.
type alive struct{ lp *linkport.Service }

func (a *alive) Connected() bool { return a.lp != nil && a.lp.Connected() }

func main() {
	ctx := context.Background()

	b := bus.NewBus(4)
	splitConn := b.NewConnection("split")
	portConn := b.NewConnection("linkport")
	consoleConn := b.NewConnection("console")

	probe := &alive{}
	svc, err := split.New(split.Options{Conn: splitConn, Alive: probe})
	if err != nil {
		println("[main] split init failed:", err.Error())
		for {
			time.Sleep(time.Second)
		}
	}

	// Role first: nothing may touch the link pins before the profile exists.
	svc.PreInit()

	probe.lp = linkport.New(portConn, linkport.Options{Dial: linkport.DefaultDial})
	_ = probe.lp.Start(ctx)

	cons := console.New(svc.Sink(), diag.NewPrinter(machine.Serial, svc.ConsoleMin()), svc.ConsoleEvery())
	_ = cons.Start(ctx, consoleConn)

	// Allow USB CDC to enumerate before the status line goes out.
	time.Sleep(2 * time.Second)
	println("[main] board", svc.Board(), "state", svc.State())
	svc.PostInit()

	for {
		svc.Tick()
		time.Sleep(time.Millisecond)
	}
}
