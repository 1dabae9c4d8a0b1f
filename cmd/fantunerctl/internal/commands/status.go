package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrale/fantuner/cmd/fantunerctl/options"
	"github.com/wrale/fantuner/internal/ipcclient"
)

func newStatusCmd(cfg *options.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the running daemon's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cfg)
		},
	}
}

func runStatus(cfg *options.Config) error {
	c, err := ipcclient.Dial(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("connecting to daemon: %w", err)
	}
	defer c.Close()

	status, err := c.GetStatus()
	if err != nil {
		return fmt.Errorf("getting status: %w", err)
	}

	fmt.Printf("running:            %v\n", status.Running)
	fmt.Printf("version:            %s\n", status.Version)
	fmt.Printf("uptime:             %.0fs\n", status.UptimeSeconds)
	fmt.Printf("emergency:          %v\n", status.Emergency)
	if status.Emergency {
		fmt.Printf("emergency reason:   %s\n", status.EmergencyReason)
	}
	fmt.Printf("active profile:     %s (%s)\n", status.ActiveProfile, status.ActiveProfileID)
	fmt.Printf("connected clients:  %d\n", status.ConnectedClients)
	for _, w := range status.Warnings {
		fmt.Printf("warning:            %s\n", w)
	}

	return nil
}
