// Package checkcmder provides the check command, which compares the engine's
// normal form of a program with the one the reference evaluator finds.
package checkcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/cmd/lamdag/cmdutil"
	"github.com/papercomputeco/lamdag/pkg/cliui"
	"github.com/papercomputeco/lamdag/pkg/config"
	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/reference"
	"github.com/papercomputeco/lamdag/pkg/session"
	"github.com/papercomputeco/lamdag/pkg/syntax"
)

const checkLongDesc string = `Check a program against the reference evaluator.

The program is reduced to normal form twice: by the engine, with sharing and
memoization, and by a plain substitution evaluator. Both must reach the same
normal form. Under de Bruijn indices and hash-consing that means the same
node, so alpha-equivalent results agree.

Terms the engine cannot finish, and knotted terms the substitution evaluator
cannot unfold, are reported as skipped rather than failed.

Examples:
  lamdag check church.lam
  lamdag check -e '(\f x. f (f x)) (\y. y)'
  lamdag check --reference-steps 100000 church.lam`

const checkShortDesc string = "Compare the engine with the reference evaluator"

const (
	defaultReferenceSteps = 10_000
	defaultTreeLimit      = 100_000
)

// ErrMismatch is returned when the engine and the reference evaluator
// disagree.
var ErrMismatch = errors.New("normal forms differ")

var flagKeys = []string{
	config.FlagBudget,
	config.FlagDetectCycles,
	config.FlagAllowFree,
	config.FlagMaxDepth,
	config.FlagLogJSON,
	config.FlagLogPretty,
}

type checkCommander struct {
	expr           string
	postfix        bool
	referenceSteps int

	budget       int
	detectCycles bool
	allowFree    bool
	maxDepth     int
	logJSON      bool
	logPretty    bool
}

// Verdict is how a check ended.
type Verdict int

const (
	Match Verdict = iota
	Mismatch
	Skipped
)

func (v Verdict) String() string {
	switch v {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "skipped"
	}
}

// Result is the outcome of one check.
type Result struct {
	Verdict Verdict

	// Engine and Reference are the two normal forms, rendered.
	Engine    string
	Reference string

	EngineSteps    int
	ReferenceSteps int

	// Reason says why a check was skipped.
	Reason string
}

func NewCheckCmd() *cobra.Command {
	cmder := &checkCommander{}

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: checkShortDesc,
		Long:  checkLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.expr, "expr", "e", "", "Program text to check instead of a file")
	cmd.Flags().BoolVar(&cmder.postfix, "postfix", false, "Read the postfix token format")
	cmd.Flags().IntVar(&cmder.referenceSteps, "reference-steps", defaultReferenceSteps, "Step limit of the reference evaluator")

	config.AddIntFlag(cmd, config.Flags, config.FlagBudget, &cmder.budget)
	config.AddBoolFlag(cmd, config.Flags, config.FlagDetectCycles, &cmder.detectCycles)
	config.AddBoolFlag(cmd, config.Flags, config.FlagAllowFree, &cmder.allowFree)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxDepth, &cmder.maxDepth)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogJSON, &cmder.logJSON)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogPretty, &cmder.logPretty)

	return cmd
}

func (c *checkCommander) run(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig(cmd, flagKeys...)
	if err != nil {
		return err
	}
	cfg.Engine.Mode = reduce.Deep.String()
	log := cmdutil.Logger(cmd, cfg)

	src, label, err := cmdutil.ReadSource(args, c.expr)
	if err != nil {
		return err
	}

	engine, err := cmdutil.NewEngine(cfg, log)
	if err != nil {
		return err
	}
	sess, err := session.New(session.Config{Engine: engine, Budget: cfg.Engine.Budget, Logger: log})
	if err != nil {
		return err
	}

	t, err := sess.Compile(src, c.postfix)
	if err != nil {
		return err
	}

	res, err := Check(cmd.Context(), sess, t, cfg.Engine.Budget, c.referenceSteps, log)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), label, res)
}

// Check reduces t with the session's engine and with the reference evaluator
// and compares the two normal forms.
func Check(ctx context.Context, sess *session.Session, t session.Term, budget, referenceSteps int, log *slog.Logger) (Result, error) {
	engine := sess.Engine()

	out, runErr := engine.Run(ctx, reduce.Request{Root: t.Root, Env: env.Empty, Budget: budget, Mode: reduce.Deep})
	if out.Status != reduce.Done {
		reason := out.Status.String()
		if runErr != nil {
			reason = runErr.Error()
		}
		return Result{Verdict: Skipped, EngineSteps: out.Steps, Reason: "engine: " + reason}, nil
	}

	printer := &syntax.Printer{Nodes: engine.Nodes(), FreeNames: t.FreeNames}
	res := Result{
		Engine:      printer.RenderNode(out.Node),
		EngineSteps: out.Steps,
	}

	tree, err := reference.FromGraph(engine.Nodes(), t.Root, defaultTreeLimit)
	switch {
	case errors.Is(err, reference.ErrCyclic), errors.Is(err, reference.ErrTooLarge):
		res.Verdict, res.Reason = Skipped, "reference: "+err.Error()
		return res, nil
	case err != nil:
		return res, err
	}

	nf, steps, err := reference.Normalize(tree, referenceSteps)
	res.ReferenceSteps = steps
	if errors.Is(err, reference.ErrStepLimit) {
		res.Verdict, res.Reason = Skipped, "reference: "+err.Error()
		return res, nil
	}

	want, err := reference.ToGraph(engine.Nodes(), nf)
	if err != nil {
		return res, err
	}
	res.Reference = printer.RenderNode(want)

	res.Verdict = Match
	if want != out.Node {
		res.Verdict = Mismatch
		log.Warn("normal forms differ",
			"run_id", out.RunID,
			"engine", out.Node,
			"reference", want,
		)
	}
	return res, nil
}

func printResult(w io.Writer, label string, res Result) error {
	switch res.Verdict {
	case Match:
		fmt.Fprintf(w, "%s %s: normal forms agree\n", cliui.SuccessMark, label)
		fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("normal form"), cliui.TermStyle.Render(res.Engine))
		fmt.Fprintf(w, "  %s %d engine, %d reference\n", cliui.KeyStyle.Render("steps"), res.EngineSteps, res.ReferenceSteps)
		return nil

	case Mismatch:
		fmt.Fprintf(w, "%s %s: normal forms differ\n", cliui.FailMark, label)
		fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("engine   "), cliui.TermStyle.Render(res.Engine))
		fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("reference"), cliui.TermStyle.Render(res.Reference))
		return fmt.Errorf("%s: %w", label, ErrMismatch)

	default:
		fmt.Fprintf(w, "%s %s: skipped (%s)\n", cliui.WarnMark, label, res.Reason)
		return nil
	}
}
