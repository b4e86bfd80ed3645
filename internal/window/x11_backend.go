package window

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
)

// X11Lister lists window titles over an X11 connection. The connection is
// opened lazily and re-opened after a failed query, so a display that is not
// up yet (or restarts) only costs the affected ticks.
type X11Lister struct {
	mu    sync.Mutex
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
	dial  func() (*xgb.Conn, error)
}

// NewX11Lister creates a lister for the display named by $DISPLAY.
func NewX11Lister() *X11Lister {
	return &X11Lister{dial: xgb.NewConn}
}

// Name returns the backend name
func (b *X11Lister) Name() string {
	return "x11"
}

// Close closes the X11 connection
func (b *X11Lister) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnectLocked()
	return nil
}

func (b *X11Lister) connectLocked() error {
	if b.conn != nil {
		return nil
	}
	conn, err := b.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	setup := xproto.Setup(conn)
	b.conn = conn
	b.root = setup.DefaultScreen(conn).Root
	b.atoms = make(map[string]xproto.Atom)

	logger.WithComponent("x11").Info().Msg("Connected to X server")
	return nil
}

func (b *X11Lister) disconnectLocked() {
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// ListTitles returns the titles of all top-level windows using EWMH
// _NET_CLIENT_LIST with QueryTree fallback. Windows without a title are
// skipped.
func (b *X11Lister) ListTitles() ([]string, error) {
	log := logger.WithComponent("x11")

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.connectLocked(); err != nil {
		return nil, err
	}

	windows, err := b.clientListLocked()
	if err != nil || len(windows) == 0 {
		if err != nil {
			log.Debug().Err(err).Msg("EWMH client list unavailable, falling back to QueryTree")
		}
		tree, err := xproto.QueryTree(b.conn, b.root).Reply()
		if err != nil {
			// Most likely the connection is gone; reconnect next tick
			b.disconnectLocked()
			return nil, fmt.Errorf("failed to query window tree: %w", err)
		}
		windows = tree.Children
	}

	titles := make([]string, 0, len(windows))
	for _, win := range windows {
		title := b.titleLocked(win)
		if title == "" {
			continue
		}
		titles = append(titles, title)
	}

	log.Debug().Int("windows", len(windows)).Int("titles", len(titles)).Msg("Listed window titles")
	return titles, nil
}

// clientListLocked reads _NET_CLIENT_LIST from the root window
func (b *X11Lister) clientListLocked() ([]xproto.Window, error) {
	atom, err := b.atomLocked("_NET_CLIENT_LIST")
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(b.conn, false, b.root, atom,
		xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST property: %w", err)
	}
	return decodeWindowIDs(reply.Value), nil
}

// titleLocked prefers _NET_WM_NAME (UTF-8) and falls back to WM_NAME
func (b *X11Lister) titleLocked(win xproto.Window) string {
	for _, name := range []string{"_NET_WM_NAME", "WM_NAME"} {
		atom, err := b.atomLocked(name)
		if err != nil {
			continue
		}
		reply, err := xproto.GetProperty(b.conn, false, win, atom,
			xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
		if err != nil || reply.ValueLen == 0 {
			continue
		}
		if title := cleanTitle(reply.Value); title != "" {
			return title
		}
	}
	return ""
}

// atomLocked interns an atom, caching it for the life of the connection
func (b *X11Lister) atomLocked(name string) (xproto.Atom, error) {
	if atom, ok := b.atoms[name]; ok {
		return atom, nil
	}
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern atom %s: %w", name, err)
	}
	b.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// decodeWindowIDs parses a property value holding an array of 32-bit
// little-endian window IDs. A trailing partial ID is ignored.
func decodeWindowIDs(value []byte) []xproto.Window {
	windows := make([]xproto.Window, 0, len(value)/4)
	for i := 0; i+4 <= len(value); i += 4 {
		windows = append(windows, xproto.Window(binary.LittleEndian.Uint32(value[i:i+4])))
	}
	return windows
}

// cleanTitle trims NUL padding and surrounding whitespace from a raw title
func cleanTitle(raw []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(raw), "\x00"))
}
