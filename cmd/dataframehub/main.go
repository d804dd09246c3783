// Package main is the entry point for the dataframehub binary.
package main

import (
	"os"

	cli "dataframehub/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
