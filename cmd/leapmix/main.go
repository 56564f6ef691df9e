// Package main provides the CLI for the leapmix dataset builder.
package main

import (
	"os"

	"github.com/leapstack-labs/leapmix/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
