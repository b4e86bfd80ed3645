package background

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	plasmaService   = "org.kde.plasmashell"
	plasmaPath      = "/PlasmaShell"
	plasmaEvaluate  = "org.kde.PlasmaShell.evaluateScript"
	wallpaperPlugin = "org.kde.image"
)

// PlasmaSetter sets the wallpaper of every KDE Plasma desktop through the
// plasmashell scripting interface on the session bus.
type PlasmaSetter struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewPlasmaSetter creates a setter; the bus connection is opened on first use.
func NewPlasmaSetter() *PlasmaSetter {
	return &PlasmaSetter{}
}

// Name returns the setter name
func (p *PlasmaSetter) Name() string {
	return "plasma"
}

// Set evaluates the wallpaper script in plasmashell.
func (p *PlasmaSetter) Set(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		p.conn = conn
	}

	obj := p.conn.Object(plasmaService, dbus.ObjectPath(plasmaPath))
	call := obj.Call(plasmaEvaluate, 0, wallpaperScript(path))
	if call.Err != nil {
		// Plasma may have restarted; open a fresh connection next time
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("failed to evaluate wallpaper script: %w", call.Err)
	}
	return nil
}

// Close closes the bus connection
func (p *PlasmaSetter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// wallpaperScript returns the plasmashell script that points every desktop at
// path. The path is quoted as a JavaScript string literal.
func wallpaperScript(path string) string {
	return fmt.Sprintf(`var all = desktops();
for (var i = 0; i < all.length; i++) {
    var d = all[i];
    d.wallpaperPlugin = %q;
    d.currentConfigGroup = Array("Wallpaper", %q, "General");
    d.writeConfig("Image", %s);
}`, wallpaperPlugin, wallpaperPlugin, strconv.Quote("file://"+path))
}
