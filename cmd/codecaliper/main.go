// Package main is the entry point for the codecaliper CLI.
package main

import (
	"fmt"
	"os"

	"github.com/imyousuf/codecaliper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
