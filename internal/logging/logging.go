// Package logging sets up structured logging to a rotated file so the
// terminal stays free for the game.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger.
type Options struct {
	Dir   string
	File  string
	Level string
}

// New returns a JSON logger writing to a rotated file under opts.Dir, and a
// closer for the file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if opts.File == "" {
		opts.File = "aethel.log"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	out := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, opts.File),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	})
	return slog.New(handler), out, nil
}

// Init creates the logger and installs it as the slog default.
func Init(opts Options) (*slog.Logger, io.Closer, error) {
	logger, closer, err := New(opts)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
