// Package main provides the entry point for the code-search CLI.
package main

import (
	"os"

	"github.com/Anabaai/code-search/cmd/code-search/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
