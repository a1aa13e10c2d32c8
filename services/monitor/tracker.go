package monitor

import (
	"sort"
	"strings"
	"sync"
	"time"

	"splitlink-go/errcode"
	"splitlink-go/services/split/diag"
)

// HalfState is the latest known state of one half, rebuilt from its
// diagnostics stream.
type HalfState struct {
	Name      string
	Role      string
	State     string
	Master    bool
	Connected bool
	Unstable  bool
	Drifts    int
	Flips     int
	Failures  int
	LastCode  errcode.Code
	LastAtMs  int64
	Seen      time.Time
}

// Tracker folds events into per-half state. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	halves map[string]*HalfState
	now    func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{halves: make(map[string]*HalfState), now: time.Now}
}

// kv splits "a=1 b=two flag" into a map; bare words map to "".
func kv(msg string) map[string]string {
	out := make(map[string]string)
	for _, f := range strings.Fields(msg) {
		k, v, _ := strings.Cut(f, "=")
		out[k] = v
	}
	return out
}

// Update applies one event and returns a copy of the new state.
func (t *Tracker) Update(half string, ev diag.Event) HalfState {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.halves[half]
	if !ok {
		h = &HalfState{Name: half, State: "unknown"}
		t.halves[half] = h
	}
	h.LastCode = ev.Code
	h.LastAtMs = ev.AtMs
	h.Seen = t.now()

	f := kv(ev.Msg)
	switch ev.Code {
	case errcode.RoleCommitted, errcode.TransientInstability:
		h.Role = f["role"]
		h.State = "configured"
		h.Unstable = ev.Code == errcode.TransientInstability
	case errcode.UnexpectedRoleFlip:
		h.Flips++
		h.State = "reconfiguring"
		if f["policy"] == "reconfigure" {
			h.Role = f["new"]
		}
	case errcode.PinDrift:
		h.Drifts++
		h.State = "reconfiguring"
	case errcode.PersistentLinkFailure:
		h.Failures++
		h.State = "degraded"
	case errcode.LinkRecovered:
		h.State = "configured"
	case errcode.LinkUp:
		h.Connected = true
	case errcode.LinkDown:
		h.Connected = false
	case errcode.MasterChanged:
		h.Master = f["master"] == "1"
	case errcode.Status:
		if r, ok := f["role"]; ok {
			h.Role = r
		}
		if s, ok := f["state"]; ok {
			h.State = s
		}
		h.Master = f["master"] == "1"
	}
	return *h
}

// Snapshot returns all halves sorted by name.
func (t *Tracker) Snapshot() []HalfState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]HalfState, 0, len(t.halves))
	for _, h := range t.halves {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Conflict reports two halves claiming the same role.
func Conflict(states []HalfState) bool {
	seen := map[string]bool{}
	for _, h := range states {
		if h.Role == "" {
			continue
		}
		if seen[h.Role] {
			return true
		}
		seen[h.Role] = true
	}
	return false
}
