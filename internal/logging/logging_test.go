package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := newLogger(&buf, "warn", "")
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("dropped")
	logger.Warn("kept", slog.String("component", "test"))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"component":"test"`)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestNewTeesToCombinedLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger, closer, err := newLogger(&buf, "info", dir)
	require.NoError(t, err)

	logger.Info("server started", slog.Int("port", 5000))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "combined.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"server started"`)
	assert.Contains(t, buf.String(), `"port":5000`)
}
