// Package main provides the entry point for the noterank CLI.
package main

import (
	"os"

	"github.com/noterank/noterank/cmd/noterank/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
