// Package main is the entry point for the agentmux CLI.
package main

import (
	"os"

	"github.com/agentmux/agentmux/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
