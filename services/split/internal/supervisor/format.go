package supervisor

import (
	"splitlink-go/services/split/internal/linkcfg"
	"splitlink-go/services/split/internal/strap"
	"splitlink-go/x/conv"
)

// Messages are built in a reused scratch buffer; only the final string
// allocates.

// strap=11111 agree=4 stable role=left tx=4 rx=5 uart1@921600
func (s *Supervisor) commitSummary(c strap.Confidence) string {
	b := append(s.scr[:0], "strap="...)
	b = s.win.AppendBits(b)
	b = append(b, " agree="...)
	b = conv.AppendInt(b, int64(c.Agreements))
	if c.Stable {
		b = append(b, " stable"...)
	} else {
		b = append(b, " unstable"...)
	}
	b = append(b, " role="...)
	b = append(b, s.role.String()...)
	b = appendProfile(b, s.profile)
	s.scr = b
	return string(b)
}

func appendProfile(b []byte, p linkcfg.LinkProfile) []byte {
	b = append(b, " tx="...)
	b = conv.AppendUint(b, uint64(p.TX))
	b = append(b, " rx="...)
	b = conv.AppendUint(b, uint64(p.RX))
	b = append(b, ' ')
	b = append(b, string(p.Driver)...)
	b = append(b, '@')
	return conv.AppendUint(b, uint64(p.Baud))
}

// pin=4 mode=out-hi want=1 got=0
func (s *Supervisor) driftMsg(e linkcfg.PinExpectation, got bool) string {
	b := append(s.scr[:0], "pin="...)
	b = conv.AppendUint(b, uint64(e.Pin))
	b = append(b, " mode="...)
	b = append(b, e.Mode.String()...)
	b = append(b, " want="...)
	b = conv.AppendBit(b, e.Level)
	b = append(b, " got="...)
	b = conv.AppendBit(b, got)
	s.scr = b
	return string(b)
}

// tx=4:0 rx=5:1
func (s *Supervisor) appendLevels(b []byte) []byte {
	b = append(b, "tx="...)
	b = conv.AppendUint(b, uint64(s.profile.TX))
	b = append(b, ':')
	b = conv.AppendBit(b, s.d.Link.ReadLevel(s.profile.TX))
	b = append(b, " rx="...)
	b = conv.AppendUint(b, uint64(s.profile.RX))
	b = append(b, ':')
	return conv.AppendBit(b, s.d.Link.ReadLevel(s.profile.RX))
}

func (s *Supervisor) levelsMsg() string {
	b := s.appendLevels(s.scr[:0])
	b = append(b, " failures="...)
	b = conv.AppendUint(b, uint64(s.stats.Failures))
	s.scr = b
	return string(b)
}

func (s *Supervisor) masterMsg() string {
	b := append(s.scr[:0], "master="...)
	b = conv.AppendBit(b, s.master)
	s.scr = b
	return string(b)
}

// role=left master=1 state=configured gen=1 tx=4:1 rx=5:1
func (s *Supervisor) statusMsg() string {
	b := append(s.scr[:0], "role="...)
	b = append(b, s.role.String()...)
	b = append(b, " master="...)
	b = conv.AppendBit(b, s.master)
	b = append(b, " state="...)
	b = append(b, s.state.String()...)
	b = append(b, " gen="...)
	b = conv.AppendUint(b, uint64(s.gen))
	b = append(b, ' ')
	b = s.appendLevels(b)
	s.scr = b
	return string(b)
}
