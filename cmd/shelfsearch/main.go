// Package main provides the entry point for the shelfsearch CLI.
package main

import (
	"os"

	"github.com/shelfsearch/shelfsearch/cmd/shelfsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
