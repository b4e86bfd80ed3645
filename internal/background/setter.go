// Package background switches the desktop wallpaper to the image for the
// current system state.
package background

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
	"github.com/bryanchriswhite/BrowserGuard/internal/state"
)

// Setter applies an image file as the desktop background.
type Setter interface {
	Set(path string) error
	Name() string
}

// FehSetter sets the background with `feh --bg-scale`.
type FehSetter struct {
	binary string
}

// NewFehSetter creates a setter that runs feh from $PATH.
func NewFehSetter() *FehSetter {
	return &FehSetter{binary: "feh"}
}

// Name returns the setter name
func (f *FehSetter) Name() string {
	return "feh"
}

// Set runs feh and reports a non-zero exit with its stderr.
func (f *FehSetter) Set(path string) error {
	var stderr bytes.Buffer
	cmd := exec.Command(f.binary, "--bg-scale", path)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s --bg-scale %s: %w: %s", f.binary, path, err, msg)
		}
		return fmt.Errorf("%s --bg-scale %s: %w", f.binary, path, err)
	}
	return nil
}

// PathFunc maps a system state to its configured image path.
type PathFunc func(state.SystemState) string

// Switcher resolves the image for a state and hands it to a Setter.
type Switcher struct {
	setter   Setter
	resolver *Resolver
	paths    PathFunc
}

// NewSwitcher creates a switcher. A nil resolver uses configured paths as-is.
func NewSwitcher(setter Setter, resolver *Resolver, paths PathFunc) *Switcher {
	return &Switcher{setter: setter, resolver: resolver, paths: paths}
}

// Apply shows the background for s.
func (w *Switcher) Apply(s state.SystemState) error {
	path := w.paths(s)
	if w.resolver != nil {
		resolved, err := w.resolver.Resolve(s, path)
		if err != nil {
			return err
		}
		path = resolved
	}

	if err := w.setter.Set(path); err != nil {
		return fmt.Errorf("failed to set %s background: %w", s, err)
	}

	logger.WithComponent("background").Info().
		Str("state", s.String()).
		Str("path", path).
		Str("setter", w.setter.Name()).
		Msg("Background changed")
	return nil
}
