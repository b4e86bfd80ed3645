// Package status holds the latest daemon snapshot and fans it out to
// subscribers.
package status

import (
	"sync"
	"time"

	"github.com/bryanchriswhite/BrowserGuard/internal/matcher"
	"github.com/bryanchriswhite/BrowserGuard/internal/state"
)

// Snapshot describes the daemon after a tick.
type Snapshot struct {
	State           state.SystemState `json:"state"`
	Timing          state.Timing      `json:"timing"`
	ShownBackground state.SystemState `json:"shown_background"`
	LastTick        time.Time         `json:"last_tick"`
	// Evaluated is false when the last tick skipped content evaluation
	Evaluated         bool            `json:"evaluated"`
	Verdict           matcher.Verdict `json:"verdict"`
	OffendingTitle    string          `json:"offending_title,omitempty"`
	BlacklistPatterns int             `json:"blacklist_patterns"`
	WhitelistPatterns int             `json:"whitelist_patterns"`
}

// Hub stores the current snapshot and notifies listeners of new ones.
type Hub struct {
	mu        sync.RWMutex
	current   Snapshot
	published bool
	listeners []chan Snapshot
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{}
}

// Publish replaces the current snapshot and notifies listeners. A listener
// that is not keeping up misses snapshots rather than blocking the daemon.
func (h *Hub) Publish(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = s
	h.published = true
	for _, ch := range h.listeners {
		select {
		case ch <- s:
		default:
		}
	}
}

// Current returns the last published snapshot; ok is false before the first
// tick.
func (h *Hub) Current() (s Snapshot, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.published
}

// Subscribe adds a listener for snapshots
func (h *Hub) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 10)
	h.mu.Lock()
	h.listeners = append(h.listeners, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (h *Hub) Unsubscribe(ch chan Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, listener := range h.listeners {
		if listener == ch {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}
