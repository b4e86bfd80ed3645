package window

import (
	"errors"
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWindowIDs(t *testing.T) {
	value := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x78, 0x56, 0x34, 0x12,
		0xff, 0xff, // partial trailing ID
	}
	assert.Equal(t, []xproto.Window{1, 0x12345678}, decodeWindowIDs(value))
	assert.Empty(t, decodeWindowIDs(nil))
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Mozilla Firefox", cleanTitle([]byte("Mozilla Firefox\x00")))
	assert.Equal(t, "Terminal", cleanTitle([]byte("  Terminal \n")))
	assert.Equal(t, "", cleanTitle([]byte("\x00\x00")))
}

func TestX11Lister_ConnectFailureIsRetried(t *testing.T) {
	dials := 0
	l := &X11Lister{dial: func() (*xgb.Conn, error) {
		dials++
		return nil, errors.New("no display")
	}}

	_, err := l.ListTitles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")

	_, err = l.ListTitles()
	require.Error(t, err)
	assert.Equal(t, 2, dials)

	assert.NoError(t, l.Close())
	assert.Equal(t, "x11", l.Name())
}

func TestStatic(t *testing.T) {
	s := Static{"a", "b"}
	titles, err := s.ListTitles()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, titles)

	titles[0] = "changed"
	again, _ := s.ListTitles()
	assert.Equal(t, "a", again[0])
	assert.NoError(t, s.Close())
}

func TestTitlesFromMatches(t *testing.T) {
	raw := [][]interface{}{
		{"0_{aaaa}", "YouTube - Mozilla Firefox", "firefox", int32(0), 1.0, map[string]interface{}{}},
		{"1_{aaaa}", "YouTube - Mozilla Firefox", "firefox", int32(0), 1.0, map[string]interface{}{}},
		{"0_{bbbb}", "Konsole", "konsole", int32(0), 1.0, map[string]interface{}{}},
		{"0_{cccc}", "  ", "", int32(0), 1.0, map[string]interface{}{}},
		{"0_{dddd}"},
		{42, "not an id"},
	}

	assert.Equal(t, []string{"Konsole", "YouTube - Mozilla Firefox"}, titlesFromMatches(raw))
	assert.Empty(t, titlesFromMatches(nil))
}

func TestWindowKey(t *testing.T) {
	assert.Equal(t, "dc80ff04-3245", windowKey("0_{dc80ff04-3245}"))
	assert.Equal(t, "plain", windowKey("plain"))
}

func TestNewKWinLister(t *testing.T) {
	l := NewKWinLister()
	require.NotNil(t, l.dial)
	assert.Nil(t, l.conn, "the session bus is connected on first use")
	assert.NoError(t, l.Close())
}

func TestKWinLister_ConnectFailureIsRetried(t *testing.T) {
	dials := 0
	l := &KWinLister{dial: func() (*dbus.Conn, error) {
		dials++
		return nil, errors.New("no session bus")
	}}

	_, err := l.ListTitles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session bus")

	_, err = l.ListTitles()
	require.Error(t, err)
	assert.Equal(t, 2, dials)
	assert.NoError(t, l.Close())
	assert.Equal(t, "kwin", l.Name())
}
