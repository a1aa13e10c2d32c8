// Package console periodically drains split diagnostics to a writer.
package console

import (
	"context"
	"sync"
	"time"

	"splitlink-go/bus"
	"splitlink-go/services/split/diag"
)

var topicConfigConsole = bus.T("config", "console")

// Config is accepted on config/console. Zero fields leave settings alone.
type Config struct {
	Min   string        `json:"min,omitempty"` // "info" | "warning" | "critical"
	Every time.Duration `json:"every,omitempty"`
}

type Service struct {
	sink  *diag.Sink
	every time.Duration

	mu sync.Mutex
	p  *diag.Printer
}

func New(sink *diag.Sink, p *diag.Printer, every time.Duration) *Service {
	if every <= 0 {
		every = 250 * time.Millisecond
	}
	return &Service{sink: sink, p: p, every: every}
}

// Flush drains pending events now. Safe beside the background loop.
func (s *Service) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.p.Flush(s.sink)
	if err != nil {
		println("[console] write failed:", err.Error())
	}
	return n
}

func (s *Service) apply(cfg Config, tick *time.Ticker) {
	if cfg.Min != "" {
		if sev, ok := diag.ParseSeverity(cfg.Min); ok {
			s.mu.Lock()
			s.p.SetMin(sev)
			s.mu.Unlock()
		}
	}
	if cfg.Every > 0 {
		s.every = cfg.Every
		tick.Reset(cfg.Every)
	}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	var cfgCh <-chan *bus.Message
	if conn != nil {
		cfgSub := conn.Subscribe(topicConfigConsole)
		defer conn.Unsubscribe(cfgSub)
		cfgCh = cfgSub.Channel()
	}

	tick := time.NewTicker(s.every)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-tick.C:
			s.Flush()
		case msg, ok := <-cfgCh:
			if !ok {
				cfgCh = nil
				continue
			}
			if cfg, ok := msg.Payload.(Config); ok {
				s.apply(cfg, tick)
			}
		}
	}
}

// Start runs the drain loop until ctx is cancelled. conn may be nil.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
