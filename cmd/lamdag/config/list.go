package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/pkg/config"
)

const listLongDesc string = `List all configuration values.

Prints every key grouped by its config.toml table. Keys the file does not
set are marked as unset and take their default.

Examples:
  lamdag config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return writeList(cmd.OutOrStdout(), cfger)
		},
	}
}

// writeList prints the keys table by table, in the order of
// config.ValidConfigKeys.
func writeList(w io.Writer, cfger *config.Configer) error {
	source := "defaults only, no config file"
	if target := cfger.GetTarget(); target != "" {
		source = target
	}
	fmt.Fprintf(w, "# %s\n", source)

	var (
		table string
		lines []string
	)
	flush := func() {
		if table == "" {
			return
		}
		fmt.Fprintf(w, "\n[%s]\n%s", table, strings.Join(lines, ""))
		lines = lines[:0]
	}

	for _, key := range config.ValidConfigKeys() {
		section, name, _ := strings.Cut(key, ".")
		if section != table {
			flush()
			table = section
		}

		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		if value == "" {
			lines = append(lines, fmt.Sprintf("# %s unset\n", name))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s = %q\n", name, value))
	}
	flush()
	return nil
}
