// Package commands implements fantunerctl's cobra subcommands. Every
// command here except stop is a thin IPC Endpoint client: it dials the
// daemon's Unix socket, issues one request, prints the result and exits.
// stop instead reads the daemon's PID file and signals the process.
// None of them hold daemon state across invocations.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/wrale/fantuner/cmd/fantunerctl/options"
)

// AddCommands adds all fantunerctl subcommands to root.
func AddCommands(root *cobra.Command, cfg *options.Config) {
	root.AddCommand(newStatusCmd(cfg))
	root.AddCommand(newStopCmd(cfg))
	root.AddCommand(newProfileCmd(cfg))
	root.AddCommand(newConfigCmd(cfg))
}
