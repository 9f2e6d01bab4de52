// Package main is the entry point for the authctl CLI binary.
package main

import (
	"os"

	cli "authbridge/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
