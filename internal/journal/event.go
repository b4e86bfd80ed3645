package journal

import (
	"time"

	"github.com/bryanchriswhite/BrowserGuard/internal/state"
)

// Kind names an enforcement transition.
type Kind string

const (
	BlackoutStarted Kind = "blackout_started"
	BlackoutEnded   Kind = "blackout_ended"
	BreakStarted    Kind = "break_started"
	BreakEnded      Kind = "break_ended"
)

// Event is one row of the enforcement_events table.
type Event struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Kind         Kind       `gorm:"not null;index" json:"kind"`
	At           time.Time  `gorm:"not null;index" json:"at"`
	Until        *time.Time `json:"until,omitempty"`
	TriggerTitle string     `gorm:"not null;default:''" json:"trigger_title,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"-"`
}

// TableName overrides the gorm default
func (Event) TableName() string {
	return "enforcement_events"
}

// Transitions derives the events between two timing records. trigger is the
// offending title of the tick, recorded on blackout starts.
func Transitions(prev, next state.Timing, now time.Time, trigger string) []Event {
	var events []Event

	if prev.BreakUntil != nil && next.BreakUntil == nil {
		events = append(events, Event{Kind: BreakEnded, At: now})
	}
	if prev.BlackoutUntil != nil && next.BlackoutUntil == nil {
		events = append(events, Event{Kind: BlackoutEnded, At: now})
	}
	if next.BreakUntil != nil && prev.BreakUntil == nil {
		events = append(events, Event{Kind: BreakStarted, At: now, Until: state.At(*next.BreakUntil)})
	}
	// A repeat hit while blocked moves the deadline and counts as a new start
	if next.BlackoutUntil != nil && (prev.BlackoutUntil == nil || !prev.BlackoutUntil.Equal(*next.BlackoutUntil)) {
		events = append(events, Event{
			Kind:         BlackoutStarted,
			At:           now,
			Until:        state.At(*next.BlackoutUntil),
			TriggerTitle: trigger,
		})
	}
	return events
}
