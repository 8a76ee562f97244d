// Package main provides the CLI for the OpenDuck SQL workbench.
package main

import (
	"os"

	"github.com/leapstack-labs/openduck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
