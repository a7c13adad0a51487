// Package versioncmder prints the build information of the lamdag binaries.
package versioncmder

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lamdag/pkg/utils"
)

// Info is the build information stamped into the binary.
type Info struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	Buildtime string `json:"buildtime"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

// Current returns the information of the running binary.
func Current() Info {
	return Info{
		Version:   utils.Version,
		Sha:       utils.Sha,
		Buildtime: utils.Buildtime,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func NewVersionCmd() *cobra.Command {
	var short, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the lamdag version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := Current()
			out := cmd.OutOrStdout()

			switch {
			case short:
				_, err := fmt.Fprintln(out, info.Version)
				return err
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			_, err := fmt.Fprintf(out, "lamdag %s (%s)\nbuilt %s with %s for %s\n",
				info.Version, info.Sha, info.Buildtime, info.Go, info.Platform)
			return err
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the build information as JSON")
	cmd.MarkFlagsMutuallyExclusive("short", "json")
	return cmd
}
