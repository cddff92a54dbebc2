// Package main is the entry point of the dave CLI.
package main

import (
	"os"

	"github.com/dangerousdave/dave/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
