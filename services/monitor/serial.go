package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"splitlink-go/services/split/diag"

	"go.bug.st/serial"
)

// DefaultBaudRate is ignored by USB CDC but required by the serial API.
const DefaultBaudRate = 115200

// Opener opens a console port. Tests replace it.
type Opener func(name string, baud int) (io.ReadCloser, error)

// OpenSerial opens a CDC console port.
func OpenSerial(name string, baud int) (io.ReadCloser, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return p, nil
}

// Ports lists the serial ports present on this host.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Monitor reads diagnostics from one or more halves.
type Monitor struct {
	cfg     *Config
	min     diag.Severity
	tracker *Tracker
	open    Opener
	log     *log.Logger
}

func New(cfg *Config, open Opener, logger *log.Logger) (*Monitor, error) {
	min, ok := diag.ParseSeverity(cfg.Filter.MinSeverity)
	if !ok {
		return nil, fmt.Errorf("unknown min_severity %q", cfg.Filter.MinSeverity)
	}
	if open == nil {
		open = OpenSerial
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{cfg: cfg, min: min, tracker: NewTracker(), open: open, log: logger}, nil
}

func (m *Monitor) Tracker() *Tracker { return m.tracker }

// Watch parses lines from r until EOF or ctx ends. Every event updates the
// tracker; only those at or above the minimum severity are logged.
func (m *Monitor) Watch(ctx context.Context, half string, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := sc.Text()
		ev, err := diag.ParseLine(line)
		switch {
		case errors.Is(err, diag.ErrNotDiag):
			if m.cfg.Display.ShowRaw && line != "" {
				m.log.Printf("%s | %s", half, line)
			}
			continue
		case err != nil:
			m.log.Printf("%s | unparsed: %q", half, line)
			continue
		}
		st := m.tracker.Update(half, ev)
		if ev.Severity >= m.min {
			m.log.Printf("%s %-5s %8dms %-4s %s %s", half, st.Role, ev.AtMs, ev.Severity, ev.Code, ev.Msg)
		}
	}
	return sc.Err()
}

// Run opens every configured half and watches it, reopening after the
// reconnect delay when a port drops. It returns when ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	done := make(chan struct{}, len(m.cfg.Halves))
	for _, h := range m.cfg.Halves {
		go func(h HalfConfig) {
			defer func() { done <- struct{}{} }()
			m.follow(ctx, h)
		}(h)
	}
	var tick <-chan time.Time
	if m.cfg.Display.SummaryEvery > 0 {
		t := time.NewTicker(m.cfg.Display.SummaryEvery)
		defer t.Stop()
		tick = t.C
	}
	for n := 0; n < len(m.cfg.Halves); {
		select {
		case <-done:
			n++
		case <-tick:
			m.Summary()
		}
	}
}

func (m *Monitor) follow(ctx context.Context, h HalfConfig) {
	for {
		port, err := m.open(h.Port, h.Baud)
		if err != nil {
			m.log.Printf("%s | %v", h.Name, err)
		} else {
			m.log.Printf("%s | watching %s", h.Name, h.Port)
			stop := context.AfterFunc(ctx, func() { _ = port.Close() })
			err = m.Watch(ctx, h.Name, port)
			stop()
			_ = port.Close()
			if err != nil && ctx.Err() == nil {
				m.log.Printf("%s | port lost: %v", h.Name, err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.Display.Reconnect):
		}
	}
}

// Summary logs one line per tracked half.
func (m *Monitor) Summary() {
	states := m.tracker.Snapshot()
	for _, h := range states {
		m.log.Printf("summary %s role=%s state=%s master=%v connected=%v drifts=%d flips=%d failures=%d",
			h.Name, h.Role, h.State, h.Master, h.Connected, h.Drifts, h.Flips, h.Failures)
	}
	if Conflict(states) {
		m.log.Printf("summary WARNING: both halves report the same role")
	}
}
