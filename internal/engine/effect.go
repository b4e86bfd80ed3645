package engine

import (
	"fmt"

	"github.com/bryanchriswhite/BrowserGuard/internal/state"
)

// EffectKind enumerates the side effects a tick can request.
type EffectKind int

const (
	// KillBrowser terminates running browser processes.
	KillBrowser EffectKind = iota + 1
	// SetBackground switches the desktop background to Effect.Background.
	SetBackground
	// AllowBrowserStart lifts the start restriction; it does not start anything.
	AllowBrowserStart
)

func (k EffectKind) String() string {
	switch k {
	case KillBrowser:
		return "kill_browser"
	case SetBackground:
		return "set_background"
	case AllowBrowserStart:
		return "allow_browser_start"
	default:
		return "unknown"
	}
}

// Effect is an advisory side-effect request. The orchestrator executes
// effects in the order returned.
type Effect struct {
	Kind       EffectKind
	Background state.SystemState
}

func (e Effect) String() string {
	if e.Kind == SetBackground {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Background)
	}
	return e.Kind.String()
}

// Kill requests a browser kill.
func Kill() Effect { return Effect{Kind: KillBrowser} }

// Background requests a background change.
func Background(s state.SystemState) Effect { return Effect{Kind: SetBackground, Background: s} }

// AllowStart lifts the browser start restriction.
func AllowStart() Effect { return Effect{Kind: AllowBrowserStart} }
