// Package configcmder provides the config command for managing persistent
// lamdag configuration stored in the .lamdag/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/pkg/cliui"
	"github.com/papercomputeco/lamdag/pkg/config"
)

const configLongDesc string = `Manage persistent lamdag configuration.

Configuration is stored as config.toml in the .lamdag/ directory and provides
default values for command flags. CLI flags and LAMDAG_ environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  engine.budget, engine.mode, engine.detect_cycles, engine.allow_free,
  engine.max_depth, workers.count, workers.queue_size,
  storage.driver, storage.sqlite_path, storage.postgres_dsn, api.listen,
  events.provider, events.brokers, events.topic, log.json, log.pretty

Examples:
  lamdag config set engine.mode deep
  lamdag config set storage.driver sqlite
  lamdag config get engine.budget
  lamdag config list`

const configShortDesc string = "Manage persistent lamdag configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

// printTarget reports which config file a command reads or writes.
func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
