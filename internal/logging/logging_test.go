package logging

import (
	"bytes"
	"log/slog"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestInitLoggerTo(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := InitLoggerTo(&buf, "warn")
	logger.Info("pominięty")
	slog.Warn("zapisany", "book_id", "b1")

	var line map[string]any
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "zapisany", line["msg"])
	assert.Equal(t, "b1", line["book_id"])
	assert.Equal(t, "digilib", line["service"])
	assert.Contains(t, line, "source")
}
