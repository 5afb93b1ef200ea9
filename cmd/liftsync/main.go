// Package main provides the liftsync CLI, a thin wrapper around the sync
// engine for inspecting and driving synchronization from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
