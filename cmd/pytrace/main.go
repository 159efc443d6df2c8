// Package main provides the entry point for the pytrace CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/pytrace/cmd/pytrace/commands"
)

func main() {
	rootCmd := commands.NewRootCommand()

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
