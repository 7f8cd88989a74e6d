// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ParseLevel maps a config level name to a slog level. Unknown names map to
// info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger at level writing to stdout. When dir is set the
// output is also appended to dir/combined.log, and the returned closer
// releases that file.
func New(level, dir string) (*slog.Logger, io.Closer, error) {
	return newLogger(os.Stdout, level, dir)
}

func newLogger(stdout io.Writer, level, dir string) (*slog.Logger, io.Closer, error) {
	var (
		w      = stdout
		closer io.Closer = nopCloser{}
	)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: create %s: %w", dir, err)
		}
		f, err := os.OpenFile(filepath.Join(dir, "combined.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open combined log: %w", err)
		}
		w = io.MultiWriter(stdout, f)
		closer = f
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
