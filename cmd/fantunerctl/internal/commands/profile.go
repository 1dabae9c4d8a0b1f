package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrale/fantuner/cmd/fantunerctl/options"
	"github.com/wrale/fantuner/internal/ipcclient"
)

func newProfileCmd(cfg *options.Config) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect and switch fan profiles",
	}

	profileCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the daemon's configured profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileList(cfg)
		},
	})

	profileCmd.AddCommand(&cobra.Command{
		Use:   "set <profile-id>",
		Short: "Activate a profile by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileSet(cfg, args[0])
		},
	})

	return profileCmd
}

func runProfileList(cfg *options.Config) error {
	c, err := ipcclient.Dial(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("connecting to daemon: %w", err)
	}
	defer c.Close()

	payload, err := c.GetConfig()
	if err != nil {
		return fmt.Errorf("getting configuration: %w", err)
	}

	for id, p := range payload.Config.Profiles {
		marker := " "
		if id == payload.Config.ActiveProfileID {
			marker = "*"
		}
		fmt.Printf("%s %-20s %s\n", marker, id, p.Name)
	}

	return nil
}

func runProfileSet(cfg *options.Config, profileID string) error {
	c, err := ipcclient.Dial(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("connecting to daemon: %w", err)
	}
	defer c.Close()

	if err := c.SetProfile(profileID); err != nil {
		return fmt.Errorf("setting profile: %w", err)
	}

	fmt.Printf("active profile set to %s\n", profileID)
	return nil
}
