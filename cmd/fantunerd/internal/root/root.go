// Package root provides the root command for the fantunerd CLI.
package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrale/fantuner/cmd/fantunerd/internal/commands"
	"github.com/wrale/fantuner/cmd/fantunerd/options"
)

// New creates and configures the root command for fantunerd.
func New() (*cobra.Command, error) {
	cfg := options.New()

	cmd := &cobra.Command{
		Use:   "fantunerd",
		Short: "Background fan control daemon",
		Long: `fantunerd drives system fans from sensor temperatures using curves or
manual overrides, enforcing emergency minimums through a Safety
Supervisor, and exposes a local IPC Endpoint for clients to inspect and
control it.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "logging level (debug, info, warn, error)")
	flags.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "enable JSON log format")
	flags.StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "IPC Unix domain socket path")
	flags.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "configuration document path")

	if err := commands.AddCommands(cmd, cfg); err != nil {
		return nil, fmt.Errorf("adding commands: %w", err)
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("invalid flag: %w", err)
	})

	return cmd, nil
}
