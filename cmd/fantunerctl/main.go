// Package main implements fantunerctl, the command-line client for an
// already-running fantunerd daemon.
package main

import (
	"fmt"
	"os"

	"github.com/wrale/fantuner/cmd/fantunerctl/internal/root"
)

func main() {
	if err := root.New().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
