package commands

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrale/fantuner/cmd/fantunerctl/options"
	"github.com/wrale/fantuner/cmd/fantunerd/server"
)

// stopPollInterval is how often we recheck the PID file while waiting
// for the daemon to exit.
const stopPollInterval = 100 * time.Millisecond

// stopTimeout bounds how long we wait for a graceful exit before giving
// up; it mirrors fantunerd's own shutdown grace period.
const stopTimeout = 5 * time.Second

func newStopCmd(cfg *options.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Signal the running daemon to shut down",
		Long: `Stop reads the daemon's PID file and sends SIGTERM, then waits for the
process to exit. It does not talk to the IPC Endpoint: a daemon stuck
on a wedged IPC connection can still be stopped this way.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cfg)
		},
	}

	return cmd
}

func runStop(cfg *options.Config) error {
	pid, err := server.GetRunningPID(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("checking running daemon: %w", err)
	}
	if pid == 0 {
		return fmt.Errorf("no running daemon found in %s", cfg.DataDir)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling process %d: %w", pid, err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		remaining, err := server.GetRunningPID(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("checking running daemon: %w", err)
		}
		if remaining == 0 {
			fmt.Printf("daemon (pid %d) stopped\n", pid)
			return nil
		}
		time.Sleep(stopPollInterval)
	}

	return fmt.Errorf("daemon (pid %d) did not stop within %s", pid, stopTimeout)
}
