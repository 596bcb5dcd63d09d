// Package main is the entry point for the dynquery CLI binary.
package main

import (
	"os"

	"dynquery/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
