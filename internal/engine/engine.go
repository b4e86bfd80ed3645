// Package engine computes one tick of the lockout/break control loop. It is
// pure: state and titles in, next state and side-effect requests out.
package engine

import (
	"time"

	"github.com/bryanchriswhite/BrowserGuard/internal/matcher"
	"github.com/bryanchriswhite/BrowserGuard/internal/patterns"
	"github.com/bryanchriswhite/BrowserGuard/internal/state"
)

// Durations are the timing parameters of the engine.
type Durations struct {
	Blackout      time.Duration
	Break         time.Duration
	BreakInterval time.Duration
}

// Engine holds the rule set and durations. It keeps no per-tick state and is
// safe for concurrent use.
type Engine struct {
	blacklist patterns.Set
	whitelist patterns.Set
	durations Durations
}

// New creates an engine over pre-compiled pattern sets.
func New(blacklist, whitelist patterns.Set, d Durations) *Engine {
	return &Engine{
		blacklist: blacklist,
		whitelist: whitelist,
		durations: d,
	}
}

// Durations returns the configured durations.
func (e *Engine) Durations() Durations {
	return e.durations
}

// Patterns returns the blacklist and whitelist in force.
func (e *Engine) Patterns() (blacklist, whitelist patterns.Set) {
	return e.blacklist, e.whitelist
}

// Input is everything one tick looks at.
type Input struct {
	Titles []string
	State  state.Timing
	// Shown is the background currently on screen (state.Unknown right after
	// startup or after a failed background change).
	Shown state.SystemState
	Now   time.Time
}

// Decision is the outcome of one tick.
type Decision struct {
	State   state.Timing
	Effects []Effect
	// Evaluated is false when content evaluation was skipped for a break.
	Evaluated bool
	Match     matcher.Result
}

// Tick runs one evaluation cycle. Break scheduling takes precedence over
// content evaluation.
func (e *Engine) Tick(in Input) Decision {
	now := in.Now
	next := in.State.Clone()
	d := Decision{}
	backgroundSet := false

	switch {
	case next.BreakUntil != nil && !now.Before(*next.BreakUntil):
		next.BreakUntil = nil
		if next.BlockedAt(now) {
			d.Effects = append(d.Effects, Background(state.Blocked))
		} else {
			// An expired blackout is cleared here so Normal is emitted once
			next.BlackoutUntil = nil
			d.Effects = append(d.Effects, Background(state.Normal), AllowStart())
		}
		backgroundSet = true

	case next.BreakUntil == nil && !now.Before(next.NextBreakDue):
		next.BreakUntil = state.At(now.Add(e.durations.Break))
		// Measured from now, not from the break end, so a late break does
		// not shrink the gap before the next one
		next.NextBreakDue = now.Add(e.durations.BreakInterval)
		d.Effects = append(d.Effects, Kill(), Background(state.OnBreak))
		backgroundSet = true
	}

	if next.OnBreakAt(now) {
		// Content is not evaluated during a break. A blackout that ran out
		// meanwhile is dropped without touching the break background.
		if next.BlackoutUntil != nil && !next.BlockedAt(now) {
			next.BlackoutUntil = nil
		}
		d.State = next
		d.Effects = e.syncBackground(d.Effects, backgroundSet, in.Shown, next, now)
		return d
	}

	d.Evaluated = true
	d.Match = matcher.EvaluateAll(in.Titles, e.blacklist, e.whitelist)
	if d.Match.Verdict == matcher.Blacklisted {
		next.BlackoutUntil = state.At(now.Add(e.durations.Blackout))
		d.Effects = append(d.Effects, Kill(), Background(state.Blocked))
		backgroundSet = true
	}

	if next.BlackoutUntil != nil && !now.Before(*next.BlackoutUntil) {
		next.BlackoutUntil = nil
		d.Effects = append(d.Effects, Background(state.Normal))
		backgroundSet = true
	}

	d.State = next
	d.Effects = e.syncBackground(d.Effects, backgroundSet, in.Shown, next, now)
	return d
}

// syncBackground requests the derived background when nothing else changed it
// this tick but the screen does not show it.
func (e *Engine) syncBackground(effects []Effect, backgroundSet bool, shown state.SystemState, next state.Timing, now time.Time) []Effect {
	if backgroundSet {
		return effects
	}
	if derived := next.System(now); derived != shown {
		effects = append(effects, Background(derived))
	}
	return effects
}
