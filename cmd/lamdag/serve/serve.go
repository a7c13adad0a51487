// Package servecmder provides the serve command, which runs the reduction
// API with its worker pool, metrics and MCP endpoint.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/api"
	"github.com/papercomputeco/lamdag/api/mcp"
	"github.com/papercomputeco/lamdag/cmd/lamdag/cmdutil"
	"github.com/papercomputeco/lamdag/pkg/cliui"
	"github.com/papercomputeco/lamdag/pkg/config"
	"github.com/papercomputeco/lamdag/pkg/eventstream"
	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/metrics"
	"github.com/papercomputeco/lamdag/pkg/session"
	"github.com/papercomputeco/lamdag/pkg/storage"
	"github.com/papercomputeco/lamdag/pkg/worker"
)

const serveLongDesc string = `Run the lamdag API server.

The server shares one engine between all requests, so terms stored or reduced
by one client are memoized for every other. Reductions run on a worker pool;
when an event stream is configured every finished run is published to it.

Endpoints:
  POST /terms        store a named term
  POST /reduce       reduce a term by source or by name
  GET  /peek/:node   inspect progress without reducing
  GET  /stats        engine counters
  GET  /metrics      Prometheus metrics
  /mcp               MCP tools reduce, peek and stats

Examples:
  lamdag serve
  lamdag serve --listen :9000 --workers 8 --storage sqlite
  lamdag serve --events kafka --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the lamdag API server"

var flagKeys = []string{
	config.FlagListen,
	config.FlagWorkers,
	config.FlagQueueSize,
	config.FlagBudget,
	config.FlagMode,
	config.FlagDetectCycles,
	config.FlagAllowFree,
	config.FlagMaxDepth,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagEventsProvider,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagLogJSON,
	config.FlagLogPretty,
}

type ServeCommander struct {
	logFile string
	noMCP   bool

	listen       string
	workers      int
	queueSize    int
	budget       int
	mode         string
	detectCycles bool
	allowFree    bool
	maxDepth     int
	storage      string
	sqlitePath   string
	postgresDSN  string
	events       string
	kafkaBrokers []string
	kafkaTopic   string
	logJSON      bool
	logPretty    bool
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Serve the MCP endpoint without tools")

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddIntFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddIntFlag(cmd, config.Flags, config.FlagQueueSize, &cmder.queueSize)
	config.AddIntFlag(cmd, config.Flags, config.FlagBudget, &cmder.budget)
	config.AddStringFlag(cmd, config.Flags, config.FlagMode, &cmder.mode)
	config.AddBoolFlag(cmd, config.Flags, config.FlagDetectCycles, &cmder.detectCycles)
	config.AddBoolFlag(cmd, config.Flags, config.FlagAllowFree, &cmder.allowFree)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxDepth, &cmder.maxDepth)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.events)
	config.AddStringSliceFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogJSON, &cmder.logJSON)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogPretty, &cmder.logPretty)

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := cmdutil.LoadConfig(cmd, flagKeys...)
	if err != nil {
		return err
	}
	configDir, _ := cmd.Flags().GetString("config-dir")

	log, closeLog, err := c.newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	svc, err := newServices(ctx, cfg, configDir, c.noMCP, log)
	if err != nil {
		return err
	}
	defer svc.close()

	errChan := make(chan error, 1)
	go func() {
		if err := svc.api.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	}
}

// newLogger writes to stdout and, with --log-file, JSON records to the file
// as well.
func (c *ServeCommander) newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func(), error) {
	debug, _ := cmd.Flags().GetBool("debug")

	console := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(cfg.Log.JSON),
		logger.WithPretty(cfg.Log.Pretty && cliui.IsTerminal(os.Stdout)),
		logger.WithWriter(cmd.OutOrStdout()),
	)
	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), func() { f.Close() }, nil
}

// services is everything serve runs, in start order.
type services struct {
	storer    storage.Driver
	publisher eventstream.Publisher
	pool      *worker.Pool
	session   *session.Session
	api       *api.Server
	log       *slog.Logger
}

func newServices(ctx context.Context, cfg *config.Config, configDir string, noMCP bool, log *slog.Logger) (*services, error) {
	svc := &services{log: log}
	ok := false
	defer func() {
		if !ok {
			svc.close()
		}
	}()

	engine, err := cmdutil.NewEngine(cfg, log)
	if err != nil {
		return nil, err
	}

	svc.storer, err = cmdutil.NewStorage(ctx, cfg, configDir, log)
	if err != nil {
		return nil, err
	}

	svc.publisher, err = cmdutil.NewPublisher(cfg, log)
	if err != nil {
		return nil, err
	}

	svc.pool, err = worker.NewPool(&worker.Config{
		Engine:     engine,
		Publisher:  svc.publisher,
		NumWorkers: cfg.Workers.Count,
		QueueSize:  cfg.Workers.QueueSize,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	svc.session, err = session.New(session.Config{
		Engine: engine,
		Pool:   svc.pool,
		Storer: svc.storer,
		Budget: cfg.Engine.Budget,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Session: svc.session,
		Noop:    noMCP,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	registry := metrics.NewRegistry(metrics.NewCollector(engine, svc.pool))

	svc.api, err = api.NewServer(api.Config{
		ListenAddr:     cfg.API.Listen,
		MetricsHandler: metrics.Handler(registry),
		MCPHandler:     mcpServer.Handler(),
	}, svc.session, log)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	log.Info("services ready",
		"listen", cfg.API.Listen,
		"workers", cfg.Workers.Count,
		"storage", cfg.Storage.Driver,
		"events", cfg.Events.Provider,
		"mode", cfg.Engine.Mode,
	)

	ok = true
	return svc, nil
}

// close stops the services in reverse start order. Pending jobs drain before
// the publisher and storage close.
func (s *services) close() {
	var errs []error
	if s.api != nil {
		errs = append(errs, s.api.Shutdown())
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.storer != nil {
		errs = append(errs, s.storer.Close())
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Warn("shutdown", "error", err)
	}
}
