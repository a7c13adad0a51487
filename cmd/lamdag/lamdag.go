// Package lamdagcmder is the root lamdag command.
package lamdagcmder

import (
	"github.com/spf13/cobra"

	checkcmder "github.com/papercomputeco/lamdag/cmd/lamdag/check"
	configcmder "github.com/papercomputeco/lamdag/cmd/lamdag/config"
	initcmder "github.com/papercomputeco/lamdag/cmd/lamdag/init"
	reducecmder "github.com/papercomputeco/lamdag/cmd/lamdag/reduce"
	servecmder "github.com/papercomputeco/lamdag/cmd/lamdag/serve"
	statuscmder "github.com/papercomputeco/lamdag/cmd/lamdag/status"
	stepcmder "github.com/papercomputeco/lamdag/cmd/lamdag/step"
	versioncmder "github.com/papercomputeco/lamdag/cmd/version"
)

const lamdagLongDesc string = `lamdag reduces lambda calculus terms on a shared graph.

Terms are hash-consed into a DAG and reduced bottom-up with memoization, so
shared subterms are reduced once. Reductions can be bounded by a step budget,
resumed, watched step by step and inspected while they run.

Reduce and inspect terms using:
  lamdag reduce        Reduce a program to head or full normal form
  lamdag step          Step through a reduction interactively
  lamdag check         Compare the engine with the reference evaluator
  lamdag serve         Run the API server`

const lamdagShortDesc string = "lamdag - shared bottom-up lambda reduction"

func NewLamdagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lamdag",
		Short:         lamdagShortDesc,
		Long:          lamdagLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .lamdag directory location")

	// Add subcommands
	cmd.AddCommand(reducecmder.NewReduceCmd())
	cmd.AddCommand(stepcmder.NewStepCmd())
	cmd.AddCommand(checkcmder.NewCheckCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
