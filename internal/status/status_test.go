package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/BrowserGuard/internal/matcher"
	"github.com/bryanchriswhite/BrowserGuard/internal/state"
)

func TestHub_PublishAndCurrent(t *testing.T) {
	h := NewHub()
	_, ok := h.Current()
	assert.False(t, ok)

	h.Publish(Snapshot{State: state.Blocked})
	cur, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, state.Blocked, cur.State)
}

func TestHub_Subscribe(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	h.Publish(Snapshot{State: state.OnBreak})
	select {
	case s := <-ch:
		assert.Equal(t, state.OnBreak, s.State)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	h.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe does not panic on the closed channel
	h.Publish(Snapshot{State: state.Normal})
}

func TestHub_SlowListenerDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(Snapshot{BlacklistPatterns: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a full listener")
	}
	assert.Len(t, ch, cap(ch))
}

func TestSnapshot_JSON(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	s := Snapshot{
		State:           state.Blocked,
		Timing:          state.Timing{BlackoutUntil: state.At(at.Add(10 * time.Minute)), NextBreakDue: at.Add(3 * time.Hour)},
		ShownBackground: state.Blocked,
		LastTick:        at,
		Evaluated:       true,
		Verdict:         matcher.Blacklisted,
		OffendingTitle:  "porn video",
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "blocked", decoded["state"])
	assert.Equal(t, "blacklisted", decoded["verdict"])
	assert.Equal(t, "porn video", decoded["offending_title"])
	timing := decoded["timing"].(map[string]any)
	assert.Equal(t, "2025-03-14T09:10:00Z", timing["blackout_until"])
	assert.NotContains(t, timing, "break_until")
}
