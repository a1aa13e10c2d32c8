package diag

import (
	"io"

	"splitlink-go/x/conv"
)

// LinePrefix starts every rendered event.
const LinePrefix = "[split] "

// tsWidth pads timestamps so columns line up on a serial console.
const tsWidth = 8

// AppendLine renders ev as "[split] <ts> <SEV> <code> <msg>\n".
func AppendLine(dst []byte, ev Event) []byte {
	dst = append(dst, LinePrefix...)
	dst = conv.AppendPadded(dst, ev.AtMs, tsWidth)
	dst = append(dst, ' ')
	dst = append(dst, ev.Severity.String()...)
	dst = append(dst, ' ')
	dst = append(dst, string(ev.Code)...)
	if ev.Msg != "" {
		dst = append(dst, ' ')
		dst = append(dst, ev.Msg...)
	}
	return append(dst, '\n')
}

// Printer writes drained events at or above a minimum severity.
type Printer struct {
	w   io.Writer
	min Severity
	buf []byte
}

// NewPrinter filters below min. Info is hidden unless asked for.
func NewPrinter(w io.Writer, min Severity) *Printer {
	return &Printer{w: w, min: min, buf: make([]byte, 0, 96)}
}

func (p *Printer) SetMin(min Severity) { p.min = min }

// Flush drains s and returns the number of lines written. Filtered events
// are still removed from the sink. The first write error stops the flush.
func (p *Printer) Flush(s *Sink) (int, error) {
	n := 0
	for ev := range s.Drain() {
		if ev.Severity < p.min {
			continue
		}
		p.buf = AppendLine(p.buf[:0], ev)
		if _, err := p.w.Write(p.buf); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
