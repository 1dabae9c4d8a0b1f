package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wrale/fantuner/cmd/fantunerctl/options"
	"github.com/wrale/fantuner/internal/ipcclient"
)

func newConfigCmd(cfg *options.Config) *cobra.Command {
	var asYAML bool

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the daemon's working configuration",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current configuration",
		Long: `Get prints the daemon's current AppConfiguration document as JSON by
default. Pass --yaml for a more readable rendering, useful when
eyeballing curves and profiles by hand.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cfg, asYAML)
		},
	}
	getCmd.Flags().BoolVar(&asYAML, "yaml", false, "render as YAML instead of JSON")

	configCmd.AddCommand(getCmd)
	return configCmd
}

func runConfigGet(cfg *options.Config, asYAML bool) error {
	c, err := ipcclient.Dial(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("connecting to daemon: %w", err)
	}
	defer c.Close()

	payload, err := c.GetConfig()
	if err != nil {
		return fmt.Errorf("getting configuration: %w", err)
	}

	if asYAML {
		out, err := yaml.Marshal(payload.Config)
		if err != nil {
			return fmt.Errorf("rendering configuration as yaml: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}

	out, err := json.MarshalIndent(payload.Config, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering configuration as json: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
