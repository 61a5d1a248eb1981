// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"voicecal-mcp/internal/config"
	"voicecal-mcp/internal/logbuf"
)

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New returns a logger writing to out, and to a rotated file when
// cfg.File is set. When buf is non-nil every record at debug level or
// above is also kept in it. The returned closer releases the log file.
func New(cfg config.LogConfig, out io.Writer, buf *logbuf.Buffer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		out = io.MultiWriter(out, lj)
		closer = lj
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}
	if buf != nil {
		h = logbuf.NewHandler(h, buf, slog.LevelDebug)
	}
	return slog.New(h), closer, nil
}

// Component returns logger tagged with the component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
