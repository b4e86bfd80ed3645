// Package window enumerates the titles of top-level windows on the display.
package window

// TitleLister is the display collaborator of the daemon loop.
type TitleLister interface {
	// ListTitles returns the titles of all top-level windows. A failure is
	// transient; the caller treats it as "no titles" for that tick.
	ListTitles() ([]string, error)

	// Close releases the display connection
	Close() error

	// Name returns the backend name (e.g., "x11")
	Name() string
}

// Static is a TitleLister that returns a fixed set of titles. It is used when
// no display is wanted, e.g. in start-browser mode.
type Static []string

// ListTitles returns a copy of the fixed titles
func (s Static) ListTitles() ([]string, error) {
	return append([]string(nil), s...), nil
}

// Close is a no-op
func (s Static) Close() error { return nil }

// Name returns "static"
func (s Static) Name() string { return "static" }
