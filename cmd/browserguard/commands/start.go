package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/BrowserGuard/internal/daemon"
	"github.com/bryanchriswhite/BrowserGuard/internal/state"
	"github.com/bryanchriswhite/BrowserGuard/internal/window"
)

func runStartBrowser(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	deps, err := coreDeps(cfg)
	if err != nil {
		return err
	}
	deps.Titles = window.Static(nil)

	outcome, err := daemon.New(deps).StartBrowser(cfg.Browser.Executable, cfg.Browser.URL)
	if err != nil {
		return err
	}

	printStartOutcome(cmd.OutOrStdout(), outcome, cfg.Browser.Executable)
	return nil
}

func printStartOutcome(out io.Writer, outcome daemon.StartOutcome, executable string) {
	switch {
	case outcome.State == state.Blocked:
		fmt.Fprintln(out, "Browser is currently blocked")
	case outcome.State == state.OnBreak:
		fmt.Fprintln(out, "It's bathroom break time")
	case outcome.Started:
		fmt.Fprintf(out, "Started %s\n", executable)
	default:
		fmt.Fprintln(out, "Failed to start browser")
	}
}
