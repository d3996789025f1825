package main

import (
	"fmt"
	"os"

	"kurt.dev/kurt/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := cli.NewRootCmd(version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		if !cli.IsSilent(err) {
			fmt.Fprintf(os.Stderr, "kurt: %v\n", err)
		}
		os.Exit(cli.ExitCodeFor(err))
	}
}
