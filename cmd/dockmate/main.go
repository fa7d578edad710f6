package main

import (
	"fmt"
	"os"

	"dockmate/internal/cmd"
)

var version = "0.1.0"

func main() {
	rootCmd := cmd.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
