// Package main provides the entry point for the treestat CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/treestat/cmd/treestat/commands"
	"github.com/Sumatoshi-tech/treestat/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd, err := commands.NewRootCommand(os.Stdout)
	if err == nil {
		err = rootCmd.Execute()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
