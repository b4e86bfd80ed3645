// Package daemon runs the monitoring loop: it owns the in-memory timing
// state, frames each engine tick with load/persist, and executes the
// requested side effects.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/bryanchriswhite/BrowserGuard/internal/engine"
	"github.com/bryanchriswhite/BrowserGuard/internal/journal"
	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
	"github.com/bryanchriswhite/BrowserGuard/internal/patterns"
	"github.com/bryanchriswhite/BrowserGuard/internal/state"
	"github.com/bryanchriswhite/BrowserGuard/internal/status"
	"github.com/bryanchriswhite/BrowserGuard/internal/window"
)

// Browser kills and starts the browser process.
type Browser interface {
	KillIfRunning() error
	Start(executable, url string) error
}

// Background shows the desktop background for a system state.
type Background interface {
	Apply(s state.SystemState) error
}

// Store persists the timing state.
type Store interface {
	Load(now time.Time, breakInterval time.Duration) (state.Timing, state.LoadStatus, error)
	Save(t state.Timing, now time.Time) error
}

// Recorder receives enforcement transitions.
type Recorder interface {
	Record(events ...journal.Event) error
}

// ReloadFunc loads fresh pattern sets.
type ReloadFunc func() (blacklist, whitelist patterns.Set, err error)

// Deps are the collaborators of a Daemon. Journal, Hub, Reload and Reloads
// are optional.
type Deps struct {
	Engine     *engine.Engine
	Titles     window.TitleLister
	Browser    Browser
	Background Background
	Store      Store
	Journal    Recorder
	Hub        *status.Hub

	// Reloads signals that the pattern files changed; Reload reads them.
	Reloads <-chan struct{}
	Reload  ReloadFunc

	Interval time.Duration
	Now      func() time.Time
}

// Daemon is the orchestrator. Ticks run on a single goroutine.
type Daemon struct {
	deps   Deps
	engine *engine.Engine
	now    func() time.Time

	timing       state.Timing
	shown        state.SystemState
	saved        state.Timing
	savedOK      bool
	loaded       bool
	lastTick     time.Time
	lastDecision engine.Decision
}

// New creates a daemon. State is not loaded until Run or StartBrowser.
func New(deps Deps) *Daemon {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Daemon{
		deps:   deps,
		engine: deps.Engine,
		now:    now,
		shown:  state.Unknown,
	}
}

// Timing returns the in-memory timing state
func (d *Daemon) Timing() state.Timing {
	return d.timing.Clone()
}

// Shown returns the background currently on screen
func (d *Daemon) Shown() state.SystemState {
	return d.shown
}

// load reads and reconciles the persisted state and writes it back unless
// the file already holds exactly the reconciled state. A corrupt or
// unreadable state file is fatal.
func (d *Daemon) load() error {
	if d.loaded {
		return nil
	}
	log := logger.WithComponent("daemon")
	now := d.now()

	loaded, fileStatus, err := d.deps.Store.Load(now, d.engine.Durations().BreakInterval)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	d.timing = state.Reconcile(loaded, now)
	d.loaded = true
	if fileStatus == state.UpToDate {
		d.saved = loaded.Clone()
		d.savedOK = true
	}

	log.Info().
		Str("file", fileStatus.String()).
		Str("state", d.timing.System(now).String()).
		Time("next_break_due", d.timing.NextBreakDue).
		Msg("State loaded")

	events := journal.Transitions(loaded, d.timing, now, "")
	d.logTransitions(events)
	d.record(events)
	d.persist(now)
	return nil
}

// Run loads state, ticks immediately and then once per interval until ctx
// is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	log := logger.WithComponent("daemon")

	if err := d.load(); err != nil {
		return err
	}

	ticker := time.NewTicker(d.deps.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", d.deps.Interval).Msg("Monitoring started")
	d.Tick()

	for {
		select {
		case <-ctx.Done():
			d.persist(d.now())
			log.Info().Msg("Monitoring stopped")
			return nil
		case <-ticker.C:
			d.Tick()
		case <-d.deps.Reloads:
			d.reloadPatterns()
		}
	}
}

// Tick runs one cycle: list titles, decide, persist, apply effects,
// journal, publish.
func (d *Daemon) Tick() {
	d.tick(true)
}

func (d *Daemon) tick(listTitles bool) engine.Decision {
	log := logger.WithComponent("daemon")
	now := d.now()

	var titles []string
	if listTitles {
		var err error
		titles, err = d.deps.Titles.ListTitles()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to list window titles, evaluating none")
			titles = nil
		}
	}

	// The engine clears deadlines that expire during a run itself; reconcile
	// is only needed for state coming off disk.
	prev := d.timing
	dec := d.engine.Tick(engine.Input{
		Titles: titles,
		State:  prev,
		Shown:  d.shown,
		Now:    now,
	})
	d.timing = dec.State

	persisted := d.persist(now)
	d.apply(dec.Effects, persisted)

	events := journal.Transitions(prev, dec.State, now, dec.Match.Offending)
	d.logTransitions(events)
	d.record(events)

	d.lastTick = now
	d.lastDecision = dec
	d.publish()

	log.Debug().
		Int("titles", len(titles)).
		Str("verdict", dec.Match.Verdict.String()).
		Bool("evaluated", dec.Evaluated).
		Int("effects", len(dec.Effects)).
		Str("state", dec.State.System(now).String()).
		Msg("Tick complete")
	return dec
}

// persist saves the in-memory state if it differs from what is on disk. It
// reports whether the disk now matches memory.
func (d *Daemon) persist(now time.Time) bool {
	if d.savedOK && d.saved.Equal(d.timing) {
		return true
	}
	if err := d.deps.Store.Save(d.timing, now); err != nil {
		logger.WithComponent("daemon").Error().Err(err).Msg("Failed to persist state, retrying next tick")
		d.savedOK = false
		return false
	}
	d.saved = d.timing.Clone()
	d.savedOK = true
	return true
}

// unblocking reports effects that must not run before the state that
// justifies them is on disk.
func unblocking(e engine.Effect) bool {
	return e.Kind == engine.AllowBrowserStart ||
		(e.Kind == engine.SetBackground && e.Background == state.Normal)
}

func (d *Daemon) apply(effects []engine.Effect, persisted bool) {
	log := logger.WithComponent("daemon")

	for _, e := range effects {
		if !persisted && unblocking(e) {
			log.Warn().Str("effect", e.String()).Msg("State not persisted, withholding effect")
			continue
		}

		switch e.Kind {
		case engine.KillBrowser:
			if err := d.deps.Browser.KillIfRunning(); err != nil {
				log.Warn().Err(err).Msg("Failed to kill browser")
			}
		case engine.SetBackground:
			if err := d.deps.Background.Apply(e.Background); err != nil {
				log.Warn().Err(err).Str("background", e.Background.String()).Msg("Failed to set background")
				continue
			}
			d.shown = e.Background
		case engine.AllowBrowserStart:
			log.Info().Msg("Browser may be started again")
		}
	}
}

func (d *Daemon) logTransitions(events []journal.Event) {
	log := logger.WithComponent("daemon")
	for _, e := range events {
		ev := log.Info().Str("event", string(e.Kind))
		if e.Until != nil {
			ev = ev.Time("until", *e.Until)
		}
		if e.TriggerTitle != "" {
			ev = ev.Str("title", e.TriggerTitle)
		}
		ev.Msg("Enforcement transition")
	}
}

func (d *Daemon) record(events []journal.Event) {
	if d.deps.Journal == nil || len(events) == 0 {
		return
	}
	if err := d.deps.Journal.Record(events...); err != nil {
		logger.WithComponent("daemon").Warn().Err(err).Msg("Failed to record enforcement events")
	}
}

func (d *Daemon) publish() {
	if d.deps.Hub == nil {
		return
	}
	black, white := d.engine.Patterns()
	d.deps.Hub.Publish(status.Snapshot{
		State:             d.timing.System(d.lastTick),
		Timing:            d.timing.Clone(),
		ShownBackground:   d.shown,
		LastTick:          d.lastTick,
		Evaluated:         d.lastDecision.Evaluated,
		Verdict:           d.lastDecision.Match.Verdict,
		OffendingTitle:    d.lastDecision.Match.Offending,
		BlacklistPatterns: black.Len(),
		WhitelistPatterns: white.Len(),
	})
}

// reloadPatterns swaps in fresh pattern sets; on failure the current sets
// stay in force.
func (d *Daemon) reloadPatterns() {
	log := logger.WithComponent("daemon")
	if d.deps.Reload == nil {
		return
	}

	black, white, err := d.deps.Reload()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to reload patterns, keeping current rules")
		return
	}
	d.engine = engine.New(black, white, d.engine.Durations())
	log.Info().
		Int("blacklist", black.Len()).
		Int("whitelist", white.Len()).
		Msg("Patterns reloaded")
}

// StartOutcome is the result of the one-shot start mode.
type StartOutcome struct {
	State state.SystemState
	// Started is false when the system is not Normal or launching failed.
	Started bool
}

// StartBrowser runs the one-shot start mode: load, one tick without titles,
// persist, apply effects, then start the browser if the system is Normal.
// A browser that fails to launch is logged, not returned: only state that
// cannot be loaded or persisted is an error.
func (d *Daemon) StartBrowser(executable, url string) (StartOutcome, error) {
	log := logger.WithComponent("daemon")

	if err := d.load(); err != nil {
		return StartOutcome{State: state.Unknown}, err
	}

	d.tick(false)
	now := d.now()
	out := StartOutcome{State: d.timing.System(now)}
	if out.State != state.Normal {
		log.Info().Str("state", out.State.String()).Msg("Browser start refused")
		return out, nil
	}

	if !d.persist(now) {
		return out, fmt.Errorf("state not persisted, refusing to start browser")
	}
	if d.shown != state.Normal {
		if err := d.deps.Background.Apply(state.Normal); err != nil {
			log.Warn().Err(err).Msg("Failed to set background")
		} else {
			d.shown = state.Normal
		}
	}

	if err := d.deps.Browser.Start(executable, url); err != nil {
		log.Warn().Err(err).Str("executable", executable).Msg("Failed to start browser")
		return out, nil
	}
	out.Started = true
	return out, nil
}
