package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/BrowserGuard/internal/journal"
	"github.com/bryanchriswhite/BrowserGuard/internal/state"
	"github.com/bryanchriswhite/BrowserGuard/internal/status"
)

type fakeEvents struct {
	events    []journal.Event
	err       error
	lastLimit int
}

func (f *fakeEvents) Recent(limit int) ([]journal.Event, error) {
	f.lastLimit = limit
	return f.events, f.err
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, NewServer(status.NewHub(), nil).Handler(), "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	hub := status.NewHub()
	h := NewServer(hub, nil).Handler()

	rec := get(t, h, "/api/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	hub.Publish(status.Snapshot{State: state.OnBreak, ShownBackground: state.OnBreak})
	rec = get(t, h, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bathroom_break", body["state"])
	assert.Equal(t, "bathroom_break", body["shown_background"])
}

func TestStatus_RejectsWrites(t *testing.T) {
	hub := status.NewHub()
	hub.Publish(status.Snapshot{State: state.Blocked})
	h := NewServer(hub, nil).Handler()

	for _, method := range []string{http.MethodPut, http.MethodPost, http.MethodDelete} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/status", strings.NewReader(`{"state":"normal"}`)))
		// The subrouter has no write routes, so mux answers 404
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}

	current, ok := hub.Current()
	require.True(t, ok)
	assert.Equal(t, state.Blocked, current.State)
}

func TestEvents(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	src := &fakeEvents{events: []journal.Event{{ID: 1, Kind: journal.BreakStarted, At: at}}}
	h := NewServer(status.NewHub(), src).Handler()

	rec := get(t, h, "/api/events?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, src.lastLimit)

	var events []journal.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, journal.BreakStarted, events[0].Kind)

	get(t, h, "/api/events")
	assert.Equal(t, journal.DefaultRecentLimit, src.lastLimit)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/events?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/events?limit=0").Code)

	src.err = errors.New("database is locked")
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/events").Code)
}

func TestEvents_JournalDisabled(t *testing.T) {
	rec := get(t, NewServer(status.NewHub(), nil).Handler(), "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestStatusStream(t *testing.T) {
	hub := status.NewHub()
	hub.Publish(status.Snapshot{State: state.Normal})

	srv := httptest.NewServer(NewServer(hub, nil).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/status/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var snap map[string]any
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "normal", snap["state"])

	// The handler subscribes before sending the current snapshot, so this
	// publish is delivered
	hub.Publish(status.Snapshot{State: state.Blocked})
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "blocked", snap["state"])
}
