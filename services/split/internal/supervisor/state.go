package supervisor

type State uint8

const (
	Uninitialized State = iota
	Resolving
	Configured
	Verifying
	Reconfiguring
	Degraded
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Resolving:
		return "resolving"
	case Configured:
		return "configured"
	case Verifying:
		return "verifying"
	case Reconfiguring:
		return "reconfiguring"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Stats are monotonic counters since boot.
type Stats struct {
	Samples    uint32
	Ticks      uint64
	Verifies   uint32
	Flips      uint32
	Drifts     uint32
	Failures   uint32
	Recoveries uint32
}
