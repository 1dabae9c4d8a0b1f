package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrale/fantuner/cmd/fantunerd/options"
)

// shutdownTimeout is the maximum time allowed for graceful shutdown.
const shutdownTimeout = 5 * time.Second

func newRunCmd(cfg *options.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the fan control daemon in the foreground",
		Long: `Run starts the Control Loop, Safety Supervisor and IPC Endpoint and
blocks until interrupted.

On shutdown every fan under software control is handed back to
hardware/BIOS auto control before the process exits.`,
		Example: `  # Run against a mock hardware adapter
  fantunerd run --mock

  # Run with a custom socket and configuration path
  fantunerd run --mock --socket /tmp/fantunerd.sock --config /tmp/fantuner.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "IPC Unix domain socket path")
	cmd.Flags().StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "configuration document path")
	cmd.Flags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory for the PID file")
	cmd.Flags().BoolVar(&cfg.Mock, "mock", cfg.Mock, "use the mock hardware adapter")

	return cmd, nil
}

func runDaemon(ctx context.Context, cfg *options.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv, err := options.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		select {
		case err := <-errCh:
			return err
		case <-time.After(shutdownTimeout):
			return fmt.Errorf("shutdown timed out after %s", shutdownTimeout)
		}
	}
}
