// Package initcmder provides the init command for initializing a local
// .lamdag directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/pkg/cliui"
	"github.com/papercomputeco/lamdag/pkg/config"
)

const dirName = ".lamdag"

const initLongDesc string = `Initialize a new .lamdag/ directory in the current working directory.

Creates a local .lamdag/ directory that takes precedence over ~/.lamdag/ for
configuration, the SQLite term database and the last-run record. With
--preset a config.toml is written as well.

Presets:
  local     in-memory storage, pretty logs
  sqlite    terms saved to .lamdag/lamdag.db
  service   SQLite storage, Kafka events, JSON logs, a bounded budget

Examples:
  lamdag init
  lamdag init --preset sqlite`

const initShortDesc string = "Initialize a local .lamdag/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			return runInit(cmd, filepath.Join(cwd, dirName), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Write a config.toml from a preset ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(cmd *cobra.Command, dir, preset string) error {
	w := cmd.OutOrStdout()

	var cfg *config.Config
	if preset != "" {
		var err error
		if cfg, err = config.PresetConfig(preset); err != nil {
			return err
		}
	}

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .lamdag directory: %w", err)
		}
		fmt.Fprintf(w, "Initialized .lamdag directory: %s\n", dir)
	}

	if cfg == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Wrote %s preset to %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(preset), cfger.GetTarget())
	return nil
}
