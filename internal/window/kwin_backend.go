package window

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
)

// KWin D-Bus constants
const (
	kwinService       = "org.kde.KWin"
	windowsRunnerPath = "/WindowsRunner"
	krunnerInterface  = "org.kde.krunner1"
)

// KWinLister lists window titles through the KRunner WindowsRunner plugin
// that KWin exports on the session bus. It works on Plasma Wayland sessions
// where native Wayland windows are invisible to X11.
type KWinLister struct {
	mu   sync.Mutex
	conn *dbus.Conn
	dial func() (*dbus.Conn, error)
}

// NewKWinLister creates a KWin lister. The session bus is connected lazily.
func NewKWinLister() *KWinLister {
	return &KWinLister{dial: func() (*dbus.Conn, error) {
		return dbus.ConnectSessionBus()
	}}
}

// Name returns "kwin"
func (k *KWinLister) Name() string { return "kwin" }

func (k *KWinLister) connect() (*dbus.Conn, error) {
	if k.conn != nil {
		return k.conn, nil
	}
	conn, err := k.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	k.conn = conn
	logger.WithComponent("window").Debug().Msg("Connected to session bus for KWin window listing")
	return conn, nil
}

// ListTitles returns the title of every window KWin knows about. An empty
// query makes the runner return all windows.
func (k *KWinLister) ListTitles() ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	conn, err := k.connect()
	if err != nil {
		return nil, err
	}

	// a(sssida{sv}): id, text, iconName, type, relevance, properties
	var rawMatches [][]interface{}
	obj := conn.Object(kwinService, windowsRunnerPath)
	if err := obj.Call(krunnerInterface+".Match", 0, "").Store(&rawMatches); err != nil {
		k.conn.Close()
		k.conn = nil
		return nil, fmt.Errorf("failed to call Match: %w", err)
	}

	return titlesFromMatches(rawMatches), nil
}

// titlesFromMatches extracts the window titles from runner matches, skipping
// malformed entries and duplicates (the runner lists a window once per
// virtual desktop action).
func titlesFromMatches(rawMatches [][]interface{}) []string {
	seen := make(map[string]struct{}, len(rawMatches))
	titles := make([]string, 0, len(rawMatches))
	for _, m := range rawMatches {
		if len(m) < 2 {
			continue
		}
		id, ok := m[0].(string)
		if !ok {
			continue
		}
		text, ok := m[1].(string)
		if !ok {
			continue
		}
		text = cleanTitle([]byte(text))
		if text == "" {
			continue
		}
		key := windowKey(id)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, text)
	}
	sort.Strings(titles)
	return titles
}

// windowKey reduces a runner match ID like "0_{dc80ff04-...}" to the window
// UUID so per-desktop actions of one window collapse.
func windowKey(id string) string {
	start := strings.Index(id, "{")
	end := strings.Index(id, "}")
	if start >= 0 && end > start {
		return id[start+1 : end]
	}
	return id
}

// Close releases the session bus connection
func (k *KWinLister) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.conn == nil {
		return nil
	}
	err := k.conn.Close()
	k.conn = nil
	return err
}
