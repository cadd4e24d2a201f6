// Package logging builds the process logger: human-readable text on stdout
// and an append-only log file recording every action.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a text logger writing to w.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Open returns a logger writing to stdout and, when path is set, appending
// to the file at path. The returned close func releases the file.
func Open(stdout io.Writer, path string, verbose bool) (*slog.Logger, func() error, error) {
	if strings.TrimSpace(path) == "" {
		return New(stdout, verbose), func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return New(io.MultiWriter(stdout, f), verbose), f.Close, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
