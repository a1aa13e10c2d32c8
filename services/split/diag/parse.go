package diag

import (
	"errors"
	"strconv"
	"strings"

	"splitlink-go/errcode"
)

var (
	ErrNotDiag   = errors.New("not_diag_line")
	ErrMalformed = errors.New("malformed_diag_line")
)

// ParseLine is the inverse of AppendLine. Lines without the prefix return
// ErrNotDiag so callers can pass other console output through.
func ParseLine(line string) (Event, error) {
	line = strings.TrimRight(line, "\r\n")
	rest, ok := strings.CutPrefix(line, LinePrefix)
	if !ok {
		return Event{}, ErrNotDiag
	}
	f := strings.SplitN(strings.TrimLeft(rest, " "), " ", 4)
	if len(f) < 3 {
		return Event{}, ErrMalformed
	}
	ts, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return Event{}, ErrMalformed
	}
	sev, ok := ParseSeverity(f[1])
	if !ok || f[2] == "" {
		return Event{}, ErrMalformed
	}
	ev := Event{AtMs: ts, Severity: sev, Code: errcode.Code(f[2])}
	if len(f) == 4 {
		ev.Msg = f[3]
	}
	return ev, nil
}
