// Package commands implements fantunerd's cobra subcommands. fantunerd
// itself only runs the daemon in the foreground; inspecting or
// controlling an already-running daemon is the job of the separate
// fantunerctl client, which talks to it over the IPC Endpoint.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrale/fantuner/cmd/fantunerd/options"
)

// AddCommands adds all fantunerd subcommands to root.
func AddCommands(root *cobra.Command, cfg *options.Config) error {
	runCmd, err := newRunCmd(cfg)
	if err != nil {
		return fmt.Errorf("creating run command: %w", err)
	}
	root.AddCommand(runCmd)

	return nil
}
