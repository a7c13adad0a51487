// Package reducecmder provides the reduce command, which reduces a program
// once or every time its file changes.
package reducecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/cmd/lamdag/cmdutil"
	"github.com/papercomputeco/lamdag/pkg/cliui"
	"github.com/papercomputeco/lamdag/pkg/config"
	"github.com/papercomputeco/lamdag/pkg/dotdir"
	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/session"
)

const reduceLongDesc string = `Reduce a lambda calculus program.

The program is read from a file, from stdin ("-") or from -e. A program is a
list of definitions, one per line, followed by the term to reduce:

  two = \f x. f (f x)
  add = \m n f x. m f (n f x)
  add two two

Head mode (the default) stops at head normal form; --deep reduces under
binders to the full normal form. The budget bounds beta steps; a run that
runs out prints its best-known partial result and exits non-zero.

Examples:
  lamdag reduce -e '(\x. x x) (\y. y)'
  lamdag reduce --deep church.lam
  lamdag reduce --deep --budget 1000 --report church.lam
  lamdag reduce --watch church.lam
  lamdag reduce --save four church.lam && lamdag reduce --load four`

const reduceShortDesc string = "Reduce a lambda calculus program"

// flagKeys are the registry flags reduce binds into the config chain.
var flagKeys = []string{
	config.FlagBudget,
	config.FlagMode,
	config.FlagDetectCycles,
	config.FlagAllowFree,
	config.FlagMaxDepth,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagLogJSON,
	config.FlagLogPretty,
}

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 100 * time.Millisecond

// ErrUnfinished is returned when a run ends in any status but done.
var ErrUnfinished = errors.New("reduction did not finish")

type reduceCommander struct {
	expr     string
	deep     bool
	postfix  bool
	deBruijn bool
	watch    bool
	report   bool
	again    bool
	save     string
	load     string

	// registry flags, read back through the config chain
	budget       int
	mode         string
	detectCycles bool
	allowFree    bool
	maxDepth     int
	storage      string
	sqlitePath   string
	postgresDSN  string
	logJSON      bool
	logPretty    bool

	configDir string
	cfg       *config.Config
	logger    *slog.Logger
	out       io.Writer
	errOut    io.Writer
}

func NewReduceCmd() *cobra.Command {
	cmder := &reduceCommander{}

	cmd := &cobra.Command{
		Use:   "reduce [file]",
		Short: reduceShortDesc,
		Long:  reduceLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.expr, "expr", "e", "", "Program text to reduce instead of a file")
	cmd.Flags().BoolVar(&cmder.deep, "deep", false, "Reduce to full normal form (same as --mode deep)")
	cmd.Flags().BoolVar(&cmder.postfix, "postfix", false, "Read the postfix token format")
	cmd.Flags().BoolVar(&cmder.deBruijn, "de-bruijn", false, "Print de Bruijn indices instead of names")
	cmd.Flags().BoolVar(&cmder.watch, "watch", false, "Reduce again whenever the file changes")
	cmd.Flags().BoolVar(&cmder.report, "report", false, "Print a markdown report instead of the bare result")
	cmd.Flags().BoolVar(&cmder.again, "again", false, "Reduce the program of the last run again")
	cmd.Flags().StringVar(&cmder.save, "save", "", "Store the program under this name before reducing it")
	cmd.Flags().StringVar(&cmder.load, "load", "", "Reduce the stored term with this name")

	config.AddIntFlag(cmd, config.Flags, config.FlagBudget, &cmder.budget)
	config.AddStringFlag(cmd, config.Flags, config.FlagMode, &cmder.mode)
	config.AddBoolFlag(cmd, config.Flags, config.FlagDetectCycles, &cmder.detectCycles)
	config.AddBoolFlag(cmd, config.Flags, config.FlagAllowFree, &cmder.allowFree)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxDepth, &cmder.maxDepth)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogJSON, &cmder.logJSON)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogPretty, &cmder.logPretty)

	cmd.MarkFlagsMutuallyExclusive("expr", "again", "load")
	cmd.MarkFlagsMutuallyExclusive("save", "load")

	return cmd
}

func (c *reduceCommander) run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.configDir, _ = cmd.Flags().GetString("config-dir")
	c.out = cmd.OutOrStdout()
	c.errOut = cmd.ErrOrStderr()

	var err error
	c.cfg, err = cmdutil.LoadConfig(cmd, flagKeys...)
	if err != nil {
		return err
	}
	if c.deep {
		c.cfg.Engine.Mode = reduce.Deep.String()
	}
	c.logger = cmdutil.Logger(cmd, c.cfg)

	if c.watch && len(args) != 1 {
		return errors.New("--watch needs a file")
	}

	var src, label string
	switch {
	case c.load != "":
		label = c.load
	case c.again:
		last, err := dotdir.NewManager().LoadLastRun(c.configDir)
		if err != nil {
			return err
		}
		if last == nil || last.Source == "" {
			return errors.New("no previous run to repeat")
		}
		src, label = last.Source, "last run"
	case !c.watch:
		src, label, err = cmdutil.ReadSource(args, c.expr)
		if err != nil {
			return err
		}
	}

	engine, err := cmdutil.NewEngine(c.cfg, c.logger)
	if err != nil {
		return err
	}

	sc := session.Config{Engine: engine, Budget: c.cfg.Engine.Budget, Logger: c.logger}
	if c.save != "" || c.load != "" {
		storer, err := cmdutil.NewStorage(ctx, c.cfg, c.configDir, c.logger)
		if err != nil {
			return err
		}
		defer storer.Close()
		sc.Storer = storer
	}

	sess, err := session.New(sc)
	if err != nil {
		return err
	}

	if c.watch {
		return c.watchFile(ctx, sess, args[0])
	}
	return c.reduceOnce(ctx, sess, src, label)
}

// reduceOnce reduces src, prints the result and records the run.
func (c *reduceCommander) reduceOnce(ctx context.Context, sess *session.Session, src, label string) error {
	req := session.Request{Postfix: c.postfix}
	switch {
	case c.load != "":
		req.Name = c.load
	case c.save != "":
		if _, _, err := sess.Save(ctx, c.save, src, c.postfix); err != nil {
			return err
		}
		req.Name = c.save
	default:
		req.Source = src
	}

	var (
		resp    session.Response
		elapsed time.Duration
	)
	step := func() error {
		start := time.Now()
		var err error
		resp, err = sess.Reduce(ctx, req)
		elapsed = time.Since(start)
		return err
	}

	var err error
	if c.report {
		err = cliui.Step(c.errOut, isTerminal(c.errOut), "reducing "+label, step)
	} else {
		err = step()
	}
	if err != nil {
		return err
	}

	rendered := c.render(sess, resp)
	c.record(src, resp, rendered)

	if c.report {
		if err := c.printReport(sess, src, label, resp, rendered, elapsed); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(c.out, rendered)
	}

	if resp.Status != reduce.Done {
		if !c.report {
			fmt.Fprintf(c.errOut, "%s %s after %d steps: %s\n", cliui.WarnMark, resp.Status, resp.Steps, resp.Error)
		}
		return fmt.Errorf("%w: %s", ErrUnfinished, resp.Status)
	}
	return nil
}

// render prints the result of a finished run and the best-known form of the
// root otherwise.
func (c *reduceCommander) render(sess *session.Session, resp session.Response) string {
	node, e := resp.Term.Root, env.Empty
	if resp.Status == reduce.Done {
		node, e = resp.Node, resp.Env
	}

	p := sess.Inspector().Printer(resp.Term.FreeNames)
	p.DeBruijn = c.deBruijn
	return p.Render(node, e)
}

func (c *reduceCommander) printReport(sess *session.Session, src, label string, resp session.Response, rendered string, elapsed time.Duration) error {
	stats := sess.Engine().Stats()

	if src == "" {
		src = label
	}
	md := cliui.Report{
		Title:   "Reduction of " + label,
		Source:  src,
		Mode:    c.cfg.Engine.Mode,
		Budget:  c.cfg.Engine.Budget,
		Status:  resp.Status.String(),
		Steps:   resp.Steps,
		Result:  rendered,
		RunID:   resp.RunID,
		Elapsed: elapsed,
		Error:   resp.Error,
		Counters: map[string]int{
			"nodes":        stats.Nodes,
			"environments": stats.Envs,
			"memo entries": stats.Memo.Entries,
			"memo commits": stats.Memo.Commits,
			"memo hits":    stats.Memo.Hits,
			"memo waits":   stats.Memo.Waits,
		},
	}.Markdown()

	out, err := cliui.RenderMarkdown(md, 100)
	if err != nil {
		c.logger.Warn("could not render report", "error", err)
	}
	_, err = fmt.Fprint(c.out, out)
	return err
}

func (c *reduceCommander) record(src string, resp session.Response, rendered string) {
	if src == "" && c.load != "" {
		return
	}

	err := dotdir.NewManager().SaveLastRun(&dotdir.LastRun{
		RunID:  resp.RunID,
		Source: src,
		Mode:   c.cfg.Engine.Mode,
		Steps:  int64(resp.Steps),
		Status: resp.Status.String(),
		Result: rendered,
		At:     time.Now().UTC(),
	}, c.configDir)
	if err != nil {
		c.logger.Warn("could not record run", "error", err)
	}
}

// watchFile reduces path now and again after every change until ctx ends.
// The session, and so the memo table, is shared across reductions: unchanged
// definitions are not reduced twice.
func (c *reduceCommander) watchFile(ctx context.Context, sess *session.Session, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	again := func() {
		src, label, err := cmdutil.ReadSource([]string{path}, "")
		if err == nil {
			err = c.reduceOnce(ctx, sess, src, label)
		}
		if err != nil && !errors.Is(err, ErrUnfinished) {
			fmt.Fprintf(c.errOut, "%s %v\n", cliui.FailMark, err)
		}
	}
	again()

	target := filepath.Clean(path)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = time.After(watchDebounce)
		case <-pending:
			pending = nil
			c.logger.Debug("file changed", "path", path)
			again()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && cliui.IsTerminal(f)
}
