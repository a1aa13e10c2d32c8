// Package linkport owns the UART that carries the split link. It follows
// the profile published by the split supervisor and reopens the port on
// every new generation.
package linkport

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"splitlink-go/bus"
	"splitlink-go/errcode"
	"splitlink-go/types"
	"splitlink-go/x/timex"

	"tinygo.org/x/drivers"
)

// DialFunc opens the UART described by a profile.
type DialFunc func(ctx context.Context, p types.LinkProfile) (drivers.UART, error)

// Handler owns an open port until ctx ends or the link fails. It calls
// rx whenever bytes arrive from the peer. A nil return with ctx still live
// means the handler finished and the port is not reopened until the next
// profile.
type Handler func(ctx context.Context, port drivers.UART, rx func()) error

// readable is implemented by ports that signal new RX data (uartx does).
type readable interface {
	Readable() <-chan struct{}
}

var (
	topicProfile = bus.T(types.TokSplit, types.TokLink, types.TokProfile)
	topicState   = bus.T(types.TokLinkPort, types.TokState)

	errNoDial = errors.New("no_dial")
)

type Options struct {
	Dial       DialFunc
	Handler    Handler       // defaults to Drain
	Window     time.Duration // RX activity window for Connected; default 1s
	MinBackoff time.Duration // default 250ms
	MaxBackoff time.Duration // default 5s
}

type Service struct {
	conn    *bus.Connection
	dial    DialFunc
	handler Handler
	window  int64
	minBO   time.Duration
	maxBO   time.Duration

	lastRx atomic.Int64 // ms, 0 means never

	mu     sync.Mutex
	curRun context.CancelFunc
	curGen uint32
	done   chan struct{}
}

func New(conn *bus.Connection, opts Options) *Service {
	if opts.Handler == nil {
		opts.Handler = Drain
	}
	if opts.Window <= 0 {
		opts.Window = time.Second
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 250 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 5 * time.Second
	}
	return &Service{
		conn:    conn,
		dial:    opts.Dial,
		handler: opts.Handler,
		window:  opts.Window.Milliseconds(),
		minBO:   opts.MinBackoff,
		maxBO:   opts.MaxBackoff,
	}
}

// Start runs the service in the background until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	go s.run(ctx)
	return nil
}

// Connected reports RX activity from the peer within the window.
func (s *Service) Connected() bool {
	last := s.lastRx.Load()
	return last != 0 && timex.NowMs()-last <= s.window
}

func (s *Service) markRx() { s.lastRx.Store(timex.NowMs()) }

func (s *Service) run(ctx context.Context) {
	sub := s.conn.Subscribe(topicProfile)
	defer s.conn.Unsubscribe(sub)

	s.publishState("idle", "awaiting_profile", 0, nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			s.publishState("stopped", "context_done", s.gen(), nil)
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				s.publishState("error", "profile_subscription_closed", s.gen(), nil)
				return
			}
			p, ok := msg.Payload.(types.LinkProfile)
			if !ok || p.Driver == "" {
				continue
			}
			if s.running(p.Gen) {
				continue
			}
			s.reconfigure(ctx, p)
		}
	}
}

func (s *Service) gen() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.curGen
}

func (s *Service) running(gen uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.curRun != nil && s.curGen == gen
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	cancel, done := s.curRun, s.done
	s.curRun, s.done = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// reconfigure stops the current link and waits for it to release the port
// before opening the next one.
func (s *Service) reconfigure(parent context.Context, p types.LinkProfile) {
	s.stopCurrent()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.mu.Lock()
	s.curRun, s.curGen, s.done = cancel, p.Gen, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.runLink(ctx, p)
	}()
}

func (s *Service) runLink(ctx context.Context, p types.LinkProfile) {
	if s.dial == nil {
		s.publishState("error", "dial_missing", p.Gen, errNoDial)
		return
	}
	backoff := backoffSeq(s.minBO, s.maxBO)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.publishState("opening", "dialing", p.Gen, nil)
		port, err := s.dial(ctx, p)
		if err != nil {
			s.publishState("backoff", "dial_failed_retrying", p.Gen, err)
			if !sleep(ctx, backoff()) {
				return
			}
			continue
		}

		s.publishState("ready", "port_open", p.Gen, nil)
		err = s.handler(ctx, port, s.markRx)
		if c, ok := port.(io.Closer); ok {
			_ = c.Close()
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.publishState("backoff", "link_lost_retrying", p.Gen, err)
			if !sleep(ctx, backoff()) {
				return
			}
			continue
		}
		s.publishState("idle", "handler_done", p.Gen, nil)
		return
	}
}

// Drain is the default handler. It discards received bytes and records
// activity; framing belongs to whoever replaces it.
func Drain(ctx context.Context, port drivers.UART, rx func()) error {
	var buf [64]byte
	var notify <-chan struct{}
	if r, ok := port.(readable); ok {
		notify = r.Readable()
	}
	poll := time.NewTicker(2 * time.Millisecond)
	defer poll.Stop()

	for {
		for port.Buffered() > 0 {
			n, err := port.Read(buf[:])
			if n > 0 {
				rx()
			}
			if err != nil {
				return &errcode.E{C: errcode.LinkDown, Op: "linkport", Err: err}
			}
			if n == 0 {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-notify:
		case <-poll.C:
		}
	}
}

func (s *Service) publishState(level, status string, gen uint32, err error) {
	st := types.PortState{Level: level, Status: status, Gen: gen, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicState, st, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
