package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToWriters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("production", "info", &buf)
	require.NoError(t, err)

	log.Info().Str("instance", "snow-1").Msg("instance is available")
	log.Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, `"instance":"snow-1"`)
	assert.Contains(t, out, `"message":"instance is available"`)
	assert.NotContains(t, out, "hidden")
}

func TestNewDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("production", "  ", &buf)
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("production", "loud")
	assert.Error(t, err)
}

func TestParseLevelCaseInsensitive(t *testing.T) {
	lvl, err := parseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)
}

func TestNewDevelopmentUsesConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("development", "debug", &buf)
	require.NoError(t, err)

	log.Error().Str("instance", "snow-1").Msg("instance is unavailable")

	out := buf.String()
	assert.Contains(t, out, "instance is unavailable")
	assert.Contains(t, out, "instance=snow-1")
	assert.NotContains(t, out, `"message"`)
}
