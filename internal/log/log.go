// Package log builds the structured logger shared by every grimoire
// command. Records carry a component attribute naming the subsystem.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"grimoire/internal/config"
)

// Component groups related log records.
type Component string

const (
	CompParser  Component = "parser"
	CompCatalog Component = "catalog"
	CompStore   Component = "store"
	CompExpr    Component = "expr"
	CompWatch   Component = "watch"
	CompMCP     Component = "mcp"
)

// New returns a logger writing to w in the configured format at or above
// the configured level.
func New(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(h), nil
}

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

// For returns logger tagged with the component, or the default logger
// tagged when logger is nil.
func For(logger *slog.Logger, c Component) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", string(c))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
