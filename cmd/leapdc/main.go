// Package main provides the leapdc denial constraint verifier CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapdc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
