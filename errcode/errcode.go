package errcode

// Code is a stable, log-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	InvalidConfig Code = "invalid_config"
	Unsupported   Code = "unsupported"
	UnknownPin    Code = "unknown_pin"
	UnknownDriver Code = "unknown_driver"

	// Identity and link supervision.
	RoleCommitted         Code = "role_committed"
	TransientInstability  Code = "transient_instability"
	UnexpectedRoleFlip    Code = "unexpected_role_flip"
	PinDrift              Code = "pin_drift"
	PersistentLinkFailure Code = "persistent_link_failure"
	LinkRecovered         Code = "link_recovered"
	LinkUp                Code = "link_up"
	LinkDown              Code = "link_down"
	MasterChanged         Code = "master_changed"
	Status                Code = "status"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
