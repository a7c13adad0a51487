package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the persistent lamdag configuration stored as config.toml in the
// .lamdag/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Engine  EngineConfig  `toml:"engine"`
	Workers WorkersConfig `toml:"workers"`
	Storage StorageConfig `toml:"storage"`
	API     APIConfig     `toml:"api"`
	Events  EventsConfig  `toml:"events"`
	Log     LogConfig     `toml:"log"`
}

// EngineConfig holds the reduction defaults applied to every run that does
// not override them.
type EngineConfig struct {
	// Budget is the step budget per run. Zero means unbounded.
	Budget int `toml:"budget"`

	// Mode is "head" or "deep".
	Mode string `toml:"mode,omitempty"`

	DetectCycles bool `toml:"detect_cycles"`
	AllowFree    bool `toml:"allow_free"`
	MaxDepth     int  `toml:"max_depth,omitempty"`
}

// WorkersConfig sizes the reduction job pool used by the server.
type WorkersConfig struct {
	Count     int `toml:"count,omitempty"`
	QueueSize int `toml:"queue_size,omitempty"`
}

// StorageConfig selects where saved term graphs live.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig configures where reduction events are published.
type EventsConfig struct {
	// Provider is "none" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	JSON   bool `toml:"json"`
	Pretty bool `toml:"pretty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func oneOfKey(name string, field func(c *Config) *string, allowed ...string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			for _, a := range allowed {
				if v == a {
					*field(c) = v
					return nil
				}
			}
			return fmt.Errorf("invalid value for %s: %q (allowed: %s)", name, v, strings.Join(allowed, ", "))
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"engine.budget":        intKey("engine.budget", func(c *Config) *int { return &c.Engine.Budget }),
	"engine.mode":          oneOfKey("engine.mode", func(c *Config) *string { return &c.Engine.Mode }, "head", "deep"),
	"engine.detect_cycles": boolKey("engine.detect_cycles", func(c *Config) *bool { return &c.Engine.DetectCycles }),
	"engine.allow_free":    boolKey("engine.allow_free", func(c *Config) *bool { return &c.Engine.AllowFree }),
	"engine.max_depth":     intKey("engine.max_depth", func(c *Config) *int { return &c.Engine.MaxDepth }),

	"workers.count":      intKey("workers.count", func(c *Config) *int { return &c.Workers.Count }),
	"workers.queue_size": intKey("workers.queue_size", func(c *Config) *int { return &c.Workers.QueueSize }),

	"storage.driver": oneOfKey("storage.driver", func(c *Config) *string { return &c.Storage.Driver }, "memory", "sqlite", "postgres"),
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},

	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},

	"events.provider": oneOfKey("events.provider", func(c *Config) *string { return &c.Events.Provider }, "none", "kafka"),
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = nil
			for b := range strings.SplitSeq(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.Events.Brokers = append(c.Events.Brokers, b)
				}
			}
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},

	"log.json":   boolKey("log.json", func(c *Config) *bool { return &c.Log.JSON }),
	"log.pretty": boolKey("log.pretty", func(c *Config) *bool { return &c.Log.Pretty }),
}
