// Package state holds the persisted lockout/break timing record and the
// system state derived from it.
package state

import "time"

// SystemState is derived from Timing at a given instant. It selects the
// background image and gates browser actions.
type SystemState int

const (
	// Unknown is only used for "nothing displayed yet" after startup.
	Unknown SystemState = iota
	Normal
	Blocked
	OnBreak
)

func (s SystemState) String() string {
	switch s {
	case Normal:
		return "normal"
	case Blocked:
		return "blocked"
	case OnBreak:
		return "bathroom_break"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON and logs.
func (s SystemState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Timing is the persisted record of blackout-end time and break schedule.
// Nil deadlines mean "not active".
type Timing struct {
	BlackoutUntil *time.Time `json:"blackout_until,omitempty"`
	NextBreakDue  time.Time  `json:"next_break_due"`
	BreakUntil    *time.Time `json:"break_until,omitempty"`
}

// Defaults returns the first-run state: no lockout, no break, first break one
// interval from now.
func Defaults(now time.Time, breakInterval time.Duration) Timing {
	return Timing{NextBreakDue: now.Add(breakInterval)}
}

// At returns a pointer to t, for building optional deadlines.
func At(t time.Time) *time.Time {
	return &t
}

// Clone returns a copy that shares no pointers with t.
func (t Timing) Clone() Timing {
	out := Timing{NextBreakDue: t.NextBreakDue}
	if t.BlackoutUntil != nil {
		out.BlackoutUntil = At(*t.BlackoutUntil)
	}
	if t.BreakUntil != nil {
		out.BreakUntil = At(*t.BreakUntil)
	}
	return out
}

// Equal compares instants, ignoring location and monotonic readings.
func (t Timing) Equal(o Timing) bool {
	return optionalEqual(t.BlackoutUntil, o.BlackoutUntil) &&
		t.NextBreakDue.Equal(o.NextBreakDue) &&
		optionalEqual(t.BreakUntil, o.BreakUntil)
}

func optionalEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// BlockedAt reports whether a lockout is in force at now.
func (t Timing) BlockedAt(now time.Time) bool {
	return t.BlackoutUntil != nil && now.Before(*t.BlackoutUntil)
}

// OnBreakAt reports whether a break is in progress at now.
func (t Timing) OnBreakAt(now time.Time) bool {
	return t.BreakUntil != nil && now.Before(*t.BreakUntil)
}

// System derives the SystemState at now. A break takes precedence over a
// blackout.
func (t Timing) System(now time.Time) SystemState {
	switch {
	case t.OnBreakAt(now):
		return OnBreak
	case t.BlockedAt(now):
		return Blocked
	default:
		return Normal
	}
}

// Reconcile normalizes a loaded record against the current clock: expired
// deadlines are cleared. It never starts a break and never touches
// NextBreakDue. Reconcile is idempotent for a fixed now.
func Reconcile(loaded Timing, now time.Time) Timing {
	out := loaded.Clone()
	if out.BlackoutUntil != nil && !now.Before(*out.BlackoutUntil) {
		out.BlackoutUntil = nil
	}
	if out.BreakUntil != nil && !now.Before(*out.BreakUntil) {
		out.BreakUntil = nil
	}
	return out
}
