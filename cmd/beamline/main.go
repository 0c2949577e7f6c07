// Package main provides the beamline command-line parser.
package main

import (
	"os"

	"github.com/leapstack-labs/beamline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
