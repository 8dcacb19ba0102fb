package slogutil

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ducklint/internal/config"
	"ducklint/internal/paths"
)

func TestLoggerFactory_EffectiveLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "warn"
	cfg.Logging.Watch = "debug"
	f := NewLoggerFactory("", cfg, nil)

	assert.Equal(t, slog.LevelWarn, f.EffectiveLevel(SubsystemCLI))
	assert.Equal(t, slog.LevelDebug, f.EffectiveLevel(SubsystemWatch))

	f.SetCLILevel(slog.LevelError)
	assert.Equal(t, slog.LevelError, f.EffectiveLevel(SubsystemCLI))
	assert.Equal(t, slog.LevelError, f.EffectiveLevel(SubsystemWatch))
}

func TestLoggerFactory_WritesFileAndConsole(t *testing.T) {
	root := t.TempDir()
	var console bytes.Buffer
	f := NewLoggerFactory(root, nil, &console)

	f.Logger(SubsystemCLI).Info("Inspected project", "results", 3)
	require.NoError(t, f.Close())

	assert.Contains(t, console.String(), "Inspected project | results=3")
	data, err := os.ReadFile(paths.LogPath(root, SubsystemCLI))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[info] Inspected project")
}

func TestLoggerFactory_NoRootNoConsoleDiscards(t *testing.T) {
	f := NewLoggerFactory("", nil, nil)
	logger := f.Logger(SubsystemWatch)
	assert.False(t, logger.Enabled(t.Context(), slog.LevelError))
	assert.NoError(t, f.Close())
}
