package main

import (
	"os"

	servecmder "github.com/papercomputeco/lamdag/cmd/lamdag/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "lamdagapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .lamdag directory location")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
