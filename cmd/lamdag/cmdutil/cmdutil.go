// Package cmdutil builds what several lamdag commands need from the
// effective configuration: loggers, engines, term storage and publishers.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/pkg/cliui"
	"github.com/papercomputeco/lamdag/pkg/config"
	"github.com/papercomputeco/lamdag/pkg/dotdir"
	"github.com/papercomputeco/lamdag/pkg/eventstream"
	"github.com/papercomputeco/lamdag/pkg/eventstream/kafka"
	"github.com/papercomputeco/lamdag/pkg/eventstream/nop"
	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/storage"
	"github.com/papercomputeco/lamdag/pkg/storage/inmemory"
	"github.com/papercomputeco/lamdag/pkg/storage/postgres"
	"github.com/papercomputeco/lamdag/pkg/storage/sqlite"
	"github.com/papercomputeco/lamdag/pkg/term"
)

// DefaultSQLiteFile is the database created in the .lamdag directory when
// sqlite storage is selected without a path.
const DefaultSQLiteFile = "lamdag.db"

// LoadConfig resolves the effective configuration for cmd: registered flags
// that were bound override LAMDAG_ environment variables, which override
// config.toml, which overrides the defaults.
func LoadConfig(cmd *cobra.Command, flagKeys ...string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	return config.FromViper(v), nil
}

// Logger builds the logger for cmd. Logs go to stderr, pretty when stderr is
// a terminal and the config allows it.
func Logger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")

	return logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(cfg.Log.JSON),
		logger.WithPretty(cfg.Log.Pretty && cliui.IsTerminal(os.Stderr)),
		logger.WithWriter(os.Stderr),
	)
}

// EngineOptions translates the engine section of cfg.
func EngineOptions(cfg *config.Config, log *slog.Logger) ([]reduce.Option, error) {
	mode, err := reduce.ParseMode(cfg.Engine.Mode)
	if err != nil {
		return nil, err
	}

	return []reduce.Option{
		reduce.WithMode(mode),
		reduce.WithCycleDetection(cfg.Engine.DetectCycles),
		reduce.WithAllowFree(cfg.Engine.AllowFree),
		reduce.WithMaxDepth(cfg.Engine.MaxDepth),
		reduce.WithLogger(log),
	}, nil
}

// NewEngine creates an engine over a fresh node store.
func NewEngine(cfg *config.Config, log *slog.Logger) (*reduce.Engine, error) {
	opts, err := EngineOptions(cfg, log)
	if err != nil {
		return nil, err
	}
	return reduce.NewEngine(term.NewStore(), opts...), nil
}

// NewStorage opens the term storage the config selects.
func NewStorage(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (storage.Driver, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		log.Info("using in-memory term storage")
		return inmemory.NewDriver(), nil

	case "sqlite":
		path, err := SQLitePath(cfg, configDir)
		if err != nil {
			return nil, err
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("opening SQLite storage: %w", err)
		}
		log.Info("using SQLite term storage", "path", path)
		return driver, nil

	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, errors.New("postgres storage needs storage.postgres_dsn")
		}
		driver, err := postgres.NewDriver(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening PostgreSQL storage: %w", err)
		}
		log.Info("using PostgreSQL term storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// SQLitePath returns the configured SQLite path, or lamdag.db inside the
// .lamdag directory, which is created if needed.
func SQLitePath(cfg *config.Config, configDir string) (string, error) {
	if cfg.Storage.SQLitePath != "" {
		return cfg.Storage.SQLitePath, nil
	}

	dir, err := dotdir.NewManager().Ensure(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving .lamdag dir: %w", err)
	}
	return filepath.Join(dir, DefaultSQLiteFile), nil
}

// NewPublisher creates the reduction event publisher the config selects.
func NewPublisher(cfg *config.Config, log *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		log.Info("publishing reduction events to kafka", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events provider %q", cfg.Events.Provider)
	}
}

// ReadSource returns the program to reduce: expr when given, else the
// contents of the single file argument, "-" meaning stdin. The label names
// the source in reports.
func ReadSource(args []string, expr string) (src, label string, err error) {
	switch {
	case expr != "" && len(args) > 0:
		return "", "", errors.New("pass either -e or a file, not both")
	case expr != "":
		return expr, "-e", nil
	case len(args) == 0:
		return "", "", errors.New("nothing to reduce: pass a file or -e")
	case args[0] == "-":
		b, err := readAll(os.Stdin)
		return string(b), "stdin", err
	default:
		b, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("reading %s: %w", args[0], err)
		}
		return string(b), args[0], nil
	}
}

func readAll(f *os.File) ([]byte, error) {
	if cliui.IsTerminal(f) {
		return nil, errors.New("refusing to read a program from a terminal")
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return b, nil
}
