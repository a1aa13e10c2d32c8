// Package diag holds the bounded diagnostics log shared by the split
// supervisor and whatever drains it.
package diag

import "splitlink-go/errcode"

type Severity uint8

const (
	Info Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "WARN"
	case Critical:
		return "CRIT"
	default:
		return "INFO"
	}
}

// ParseSeverity accepts the printed tags and their long lower-case names.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "INFO", "info":
		return Info, true
	case "WARN", "warn", "warning":
		return Warning, true
	case "CRIT", "crit", "critical":
		return Critical, true
	}
	return Info, false
}

// Event is one diagnostics record.
type Event struct {
	AtMs     int64
	Severity Severity
	Code     errcode.Code
	Msg      string
}

// Recorder accepts events without blocking.
type Recorder interface {
	Record(ev Event)
}
