// Package root provides the root command for the fantunerctl CLI.
package root

import (
	"github.com/spf13/cobra"

	"github.com/wrale/fantuner/cmd/fantunerctl/internal/commands"
	"github.com/wrale/fantuner/cmd/fantunerctl/options"
)

// New creates and configures the root command for fantunerctl.
func New() *cobra.Command {
	cfg := options.New()

	cmd := &cobra.Command{
		Use:   "fantunerctl",
		Short: "Inspect and control a running fantunerd daemon",
		Long: `fantunerctl is a client for fantunerd's IPC Endpoint: it reports
status, lists and switches profiles, inspects the working
configuration, and can signal the daemon to stop. It holds no state of
its own between invocations.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "daemon IPC Unix domain socket path")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "daemon data directory holding the PID file")

	commands.AddCommands(cmd, cfg)

	return cmd
}
