package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/BrowserGuard/internal/api"
	"github.com/bryanchriswhite/BrowserGuard/internal/background"
	"github.com/bryanchriswhite/BrowserGuard/internal/browser"
	"github.com/bryanchriswhite/BrowserGuard/internal/config"
	"github.com/bryanchriswhite/BrowserGuard/internal/daemon"
	"github.com/bryanchriswhite/BrowserGuard/internal/engine"
	"github.com/bryanchriswhite/BrowserGuard/internal/journal"
	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
	"github.com/bryanchriswhite/BrowserGuard/internal/patterns"
	"github.com/bryanchriswhite/BrowserGuard/internal/state"
	"github.com/bryanchriswhite/BrowserGuard/internal/status"
	"github.com/bryanchriswhite/BrowserGuard/internal/window"
)

// coreDeps builds the collaborators shared by both modes. Pattern files that
// are missing or invalid are fatal.
func coreDeps(cfg *config.Config) (daemon.Deps, error) {
	log := logger.WithComponent("main")

	black, white, err := patterns.LoadPair(cfg.Files.Blacklist, cfg.Files.Whitelist)
	if err != nil {
		return daemon.Deps{}, err
	}
	log.Info().
		Int("blacklist", black.Len()).
		Int("whitelist", white.Len()).
		Msg("Patterns loaded")

	var setter background.Setter
	switch cfg.Backgrounds.Setter {
	case config.SetterPlasma:
		setter = background.NewPlasmaSetter()
	default:
		setter = background.NewFehSetter()
	}

	resolver, err := background.NewResolver("")
	if err != nil {
		log.Warn().Err(err).Msg("No cache directory, missing background images will not be replaced")
	}

	return daemon.Deps{
		Engine: engine.New(black, white, engine.Durations{
			Blackout:      cfg.BlackoutDuration(),
			Break:         cfg.BreakDuration(),
			BreakInterval: cfg.BreakInterval(),
		}),
		Browser:    browser.NewController(cfg.Browser.ProcessName, cfg.KillGrace()),
		Background: background.NewSwitcher(setter, resolver, cfg.BackgroundFor),
		Store:      state.NewStore(cfg.Files.StateFile),
		Interval:   cfg.CheckInterval(),
	}, nil
}

func newTitleLister(backend string) window.TitleLister {
	if backend == config.WindowBackendKWin {
		return window.NewKWinLister()
	}
	return window.NewX11Lister()
}

func runDaemon(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("main")

	deps, err := coreDeps(cfg)
	if err != nil {
		return err
	}

	titles := newTitleLister(cfg.Monitoring.WindowBackend)
	defer titles.Close()
	deps.Titles = titles

	hub := status.NewHub()
	deps.Hub = hub

	var events api.EventSource
	if cfg.Files.Journal != "" {
		j, err := journal.Open(cfg.Files.Journal)
		if err != nil {
			return err
		}
		defer j.Close()
		deps.Journal = j
		events = j
	}

	if cfg.Monitoring.WatchPatterns {
		w, err := patterns.NewWatcher(cfg.Files.Blacklist, cfg.Files.Whitelist)
		if err != nil {
			log.Warn().Err(err).Msg("Pattern watcher unavailable, changes need a restart")
		} else {
			defer w.Close()
			deps.Reloads = w.Changes()
			deps.Reload = func() (patterns.Set, patterns.Set, error) {
				return patterns.LoadPair(cfg.Files.Blacklist, cfg.Files.Whitelist)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Port > 0 {
		server := api.NewServer(hub, events)
		go func() {
			if err := server.Start(ctx, cfg.Server.Port); err != nil {
				log.Error().Err(err).Msg("Status server stopped")
			}
		}()
	}

	log.Info().
		Str("state_file", cfg.Files.StateFile).
		Dur("interval", cfg.CheckInterval()).
		Str("process", cfg.Browser.ProcessName).
		Str("window_backend", titles.Name()).
		Msg("BrowserGuard daemon starting")

	if err := daemon.New(deps).Run(ctx); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	return nil
}
