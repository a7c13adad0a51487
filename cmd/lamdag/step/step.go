// Package stepcmder provides the step command, an interactive stepper that
// resumes a reduction one budget slice at a time.
package stepcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/cmd/lamdag/cmdutil"
	"github.com/papercomputeco/lamdag/pkg/config"
	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/session"
)

const stepLongDesc string = `Step through a reduction interactively.

Every press of space runs the engine again with another slice of the step
budget. Committed work is kept between slices, so each slice resumes where the
last one stopped, and the screen shows the best-known form of the program
after each one.

Keys:
  space  run one more slice
  + / -  double or halve the slice
  d      switch between head and deep mode
  r      forget all progress and start over
  q      quit

Examples:
  lamdag step church.lam
  lamdag step --slice 10 --deep -e '(\f x. f (f x)) (\y. y)'`

const stepShortDesc string = "Step through a reduction interactively"

var flagKeys = []string{
	config.FlagMode,
	config.FlagDetectCycles,
	config.FlagAllowFree,
	config.FlagMaxDepth,
}

type stepCommander struct {
	expr    string
	deep    bool
	postfix bool
	slice   int

	mode         string
	detectCycles bool
	allowFree    bool
	maxDepth     int
}

func NewStepCmd() *cobra.Command {
	cmder := &stepCommander{}

	cmd := &cobra.Command{
		Use:   "step [file]",
		Short: stepShortDesc,
		Long:  stepLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.expr, "expr", "e", "", "Program text to step through instead of a file")
	cmd.Flags().BoolVar(&cmder.deep, "deep", false, "Start in deep mode")
	cmd.Flags().BoolVar(&cmder.postfix, "postfix", false, "Read the postfix token format")
	cmd.Flags().IntVar(&cmder.slice, "slice", 1, "Steps per slice")

	config.AddStringFlag(cmd, config.Flags, config.FlagMode, &cmder.mode)
	config.AddBoolFlag(cmd, config.Flags, config.FlagDetectCycles, &cmder.detectCycles)
	config.AddBoolFlag(cmd, config.Flags, config.FlagAllowFree, &cmder.allowFree)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxDepth, &cmder.maxDepth)

	return cmd
}

func (c *stepCommander) run(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig(cmd, flagKeys...)
	if err != nil {
		return err
	}
	if c.deep {
		cfg.Engine.Mode = reduce.Deep.String()
	}

	src, label, err := cmdutil.ReadSource(args, c.expr)
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so the engine stays quiet.
	engine, err := cmdutil.NewEngine(cfg, logger.Nop())
	if err != nil {
		return err
	}

	sess, err := session.New(session.Config{Engine: engine, Logger: logger.Nop()})
	if err != nil {
		return err
	}

	t, err := sess.Compile(src, c.postfix)
	if err != nil {
		return err
	}

	return runStepTUI(cmd.Context(), newStepModel(cmd.Context(), sess, t, label, c.slice))
}
