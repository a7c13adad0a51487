package main

import (
	"fmt"
	"os"

	lamdagcmder "github.com/papercomputeco/lamdag/cmd/lamdag"
	"github.com/papercomputeco/lamdag/pkg/cliui"
)

func main() {
	cmd := lamdagcmder.NewLamdagCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cliui.FailMark, err)
		os.Exit(1)
	}
}
