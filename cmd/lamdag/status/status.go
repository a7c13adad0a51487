// Package statuscmder provides the status command for displaying the last
// reduction recorded in the .lamdag directory.
package statuscmder

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/pkg/cliui"
	"github.com/papercomputeco/lamdag/pkg/dotdir"
	"github.com/papercomputeco/lamdag/pkg/utils"
)

const statusLongDesc string = `Show the last reduction.

Reads the local .lamdag/ directory (or ~/.lamdag/) to display the most
recent "lamdag reduce": its status, step count and result.

Examples:
  lamdag status
  lamdag status --clear`

const statusShortDesc string = "Show the last reduction"

// previewWidth bounds the source and result lines.
const previewWidth = 72

func NewStatusCmd() *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			if forget {
				return dotdir.NewManager().ClearLastRun(configDir)
			}
			return runStatus(cmd.OutOrStdout(), configDir)
		},
	}

	cmd.Flags().BoolVar(&forget, "clear", false, "Forget the last run")

	return cmd
}

func runStatus(w io.Writer, configDir string) error {
	run, err := dotdir.NewManager().LoadLastRun(configDir)
	if err != nil {
		return fmt.Errorf("loading last run: %w", err)
	}

	if run == nil {
		fmt.Fprintf(w, "  %s No reductions recorded yet.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	mark := cliui.SuccessMark
	if run.Status != "done" {
		mark = cliui.WarnMark
	}

	fmt.Fprintf(w, "\n  %s %s  %s\n", mark, cliui.KeyStyle.Render("Status:"), cliui.StatusStyle.Render(run.Status))
	fmt.Fprintf(w, "    %s  %s\n", cliui.KeyStyle.Render("Mode:  "), run.Mode)
	fmt.Fprintf(w, "    %s  %s\n", cliui.KeyStyle.Render("Steps: "), strconv.FormatInt(run.Steps, 10))
	fmt.Fprintf(w, "    %s  %s\n", cliui.KeyStyle.Render("When:  "), cliui.DimStyle.Render(run.At.Local().Format(time.DateTime)))
	fmt.Fprintf(w, "    %s  %s\n", cliui.KeyStyle.Render("Run:   "), cliui.DimStyle.Render(run.RunID))
	fmt.Fprintf(w, "    %s  %s\n", cliui.KeyStyle.Render("Source:"), utils.Truncate(utils.OneLine(run.Source), previewWidth))
	fmt.Fprintf(w, "    %s  %s\n\n", cliui.KeyStyle.Render("Result:"), cliui.TermStyle.Render(utils.Truncate(run.Result, previewWidth)))
	return nil
}
