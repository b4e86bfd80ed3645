package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/BrowserGuard/internal/state"
)

var now = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTemp(t)

	require.NoError(t, j.Record(
		Event{Kind: BlackoutStarted, At: now, Until: state.At(now.Add(10 * time.Minute)), TriggerTitle: "porn video"},
		Event{Kind: BlackoutEnded, At: now.Add(10 * time.Minute)},
	))
	require.NoError(t, j.Record(Event{Kind: BreakStarted, At: now.Add(time.Hour), Until: state.At(now.Add(70 * time.Minute))}))

	events, err := j.Recent(0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, BreakStarted, events[0].Kind)
	assert.Equal(t, BlackoutEnded, events[1].Kind)
	assert.Equal(t, BlackoutStarted, events[2].Kind)
	assert.Equal(t, "porn video", events[2].TriggerTitle)
	require.NotNil(t, events[2].Until)
	assert.True(t, events[2].Until.Equal(now.Add(10*time.Minute)))
	assert.Nil(t, events[1].Until)

	limited, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, BreakStarted, limited[0].Kind)
}

func TestRecent_EmptyJournal(t *testing.T) {
	events, err := openTemp(t).Recent(10)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(Event{Kind: BreakEnded, At: now}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	events, err := j.Recent(5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, BreakEnded, events[0].Kind)
}

func TestTransitions(t *testing.T) {
	idle := state.Timing{NextBreakDue: now.Add(3 * time.Hour)}
	blocked := state.Timing{BlackoutUntil: state.At(now.Add(10 * time.Minute)), NextBreakDue: idle.NextBreakDue}
	onBreak := state.Timing{BreakUntil: state.At(now.Add(10 * time.Minute)), NextBreakDue: now.Add(3 * time.Hour)}

	tests := []struct {
		name    string
		prev    state.Timing
		next    state.Timing
		trigger string
		want    []Kind
	}{
		{"no change", idle, idle, "", nil},
		{"blackout starts", idle, blocked, "porn", []Kind{BlackoutStarted}},
		{"blackout unchanged", blocked, blocked, "", nil},
		{"blackout ends", blocked, idle, "", []Kind{BlackoutEnded}},
		{"break starts", idle, onBreak, "", []Kind{BreakStarted}},
		{"break ends", onBreak, idle, "", []Kind{BreakEnded}},
		{"break ends into blackout", state.Timing{
			BlackoutUntil: blocked.BlackoutUntil, BreakUntil: onBreak.BreakUntil, NextBreakDue: idle.NextBreakDue,
		}, blocked, "", []Kind{BreakEnded}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []Kind
			for _, e := range Transitions(tt.prev, tt.next, now, tt.trigger) {
				got = append(got, e.Kind)
				assert.True(t, e.At.Equal(now))
			}
			assert.Equal(t, tt.want, got)
		})
	}

	started := Transitions(idle, blocked, now, "porn")
	require.Len(t, started, 1)
	assert.Equal(t, "porn", started[0].TriggerTitle)
	assert.True(t, started[0].Until.Equal(*blocked.BlackoutUntil))

	extended := state.Timing{BlackoutUntil: state.At(now.Add(20 * time.Minute)), NextBreakDue: idle.NextBreakDue}
	assert.Len(t, Transitions(blocked, extended, now, "porn"), 1)
}
