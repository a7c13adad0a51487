// Package logger builds the *slog.Logger shared by the lamdag commands,
// server and reduction engine.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// ComponentKey tags the records of one part of the system: engine, worker,
// api or mcp.
const ComponentKey = "component"

type config struct {
	level  slog.Level
	pretty bool
	json   bool
	w      io.Writer
	prefix string
}

// New creates a logger. Without options it writes text records at Info level
// to os.Stdout. WithJSON takes precedence over WithPretty.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, w: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}

	handlerOpts := &slog.HandlerOptions{Level: c.level}
	if c.json {
		return slog.New(slog.NewJSONHandler(c.w, handlerOpts))
	}
	if c.pretty {
		return slog.New(charmlog.NewWithOptions(c.w, charmlog.Options{
			Level:           charmlog.Level(c.level),
			Prefix:          c.prefix,
			ReportTimestamp: true,
		}))
	}
	return slog.New(slog.NewTextHandler(c.w, handlerOpts))
}

// Nop returns a logger that drops every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Component returns l tagged with the name of a part of the system. A nil l
// yields a Nop logger.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l.With(ComponentKey, name)
}
