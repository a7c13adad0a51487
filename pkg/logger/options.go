package logger

import (
	"io"
	"log/slog"
)

// Option configures New.
type Option func(*config)

// WithDebug lowers the level to Debug, where the engine logs every run.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects charmbracelet/log for terminals.
func WithPretty(pretty bool) Option {
	return func(c *config) { c.pretty = pretty }
}

// WithJSON selects slog's JSON handler, for services and log files.
func WithJSON(json bool) Option {
	return func(c *config) { c.json = json }
}

// WithWriter sets the output. A nil w keeps os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.w = w
		}
	}
}

// WithPrefix prefixes pretty records, e.g. with the command name.
func WithPrefix(prefix string) Option {
	return func(c *config) { c.prefix = prefix }
}
