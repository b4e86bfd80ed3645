package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		" INFO ":  zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("debug", false, &buf)
	t.Cleanup(func() { Init("info", false) })

	WithComponent("daemon").Info().Str("state", "blocked").Msg("Enforcement transition")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "daemon", entry["component"])
	assert.Equal(t, "blocked", entry["state"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestInit_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", false, &buf)
	t.Cleanup(func() { Init("info", false) })

	Get().Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	Get().Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestInit_Pretty(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", true, &buf)
	t.Cleanup(func() { Init("info", false) })

	WithComponent("config").Info().Msg("Config loaded")
	assert.Contains(t, buf.String(), "Config loaded")
	assert.Contains(t, buf.String(), "component=")
	assert.False(t, json.Valid(buf.Bytes()))
}
