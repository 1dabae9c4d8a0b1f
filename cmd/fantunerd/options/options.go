// Package options provides configuration and initialization for the
// fantunerd command.
package options

import (
	"context"
	"fmt"
	"os"

	"github.com/wrale/fantuner/cmd/fantunerd/logger"
	"github.com/wrale/fantuner/cmd/fantunerd/server"
	"github.com/wrale/fantuner/internal/hardware"
)

// Config holds the command-line options for fantunerd.
type Config struct {
	// SocketPath is the Unix domain socket the IPC Endpoint listens on.
	SocketPath string

	// ConfigPath is the path to the persisted AppConfiguration document.
	ConfigPath string

	// DataDir holds the PID file. SocketPath and ConfigPath are not
	// derived from it; each keeps its own default.
	DataDir string

	// LogLevel controls logging verbosity.
	LogLevel string

	// LogJSON forces JSON log output regardless of environment.
	LogJSON bool

	// Mock selects the in-memory mock hardware Adapter instead of real
	// sensor/fan access. Real hardware access requires a platform-specific
	// SensorSource/FanSource pair that is out of scope here (see
	// hardware.RealAdapter); --mock is the only adapter this build wires.
	Mock bool
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		SocketPath: "/var/run/fantunerd.sock",
		ConfigPath: "/var/lib/fantunerd/config.json",
		DataDir:    "/var/lib/fantunerd",
		LogLevel:   "info",
		Mock:       false,
	}
}

// Validate performs configuration validation.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path is required")
	}
	if c.ConfigPath == "" {
		return fmt.Errorf("config path is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if !c.Mock {
		return fmt.Errorf("this build only wires the mock hardware adapter, pass --mock")
	}
	return nil
}

// NewServer creates and configures a new server instance from cfg.
func NewServer(ctx context.Context, cfg *Config) (*server.Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	applyLoggerFlags(cfg)
	log, err := logger.New()
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	opts := []server.Option{
		server.WithSocketPath(cfg.SocketPath),
		server.WithConfigPath(cfg.ConfigPath),
		server.WithDataDir(cfg.DataDir),
		server.WithAdapter(newMockAdapter()),
	}

	srv, err := server.New(ctx, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing server: %w", err)
	}
	return srv, nil
}

// applyLoggerFlags exports --log-level/--log-json onto the environment
// variables logger.New reads, so the flags take effect without
// threading a separate logger.Config through the call.
func applyLoggerFlags(cfg *Config) {
	if cfg.LogLevel != "" {
		os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}
	if cfg.LogJSON {
		os.Setenv("LOG_JSON", "true")
	}
}

// newMockAdapter builds the mock Adapter wired by --mock, seeded with a
// representative CPU/GPU fan pair so the daemon has something to
// tune out of the box.
func newMockAdapter() hardware.Adapter {
	cpuFan := hardware.FanID{HardwareID: "mobo0", Name: "CPU Fan", Index: 0}
	gpuFan := hardware.FanID{HardwareID: "mobo0", Name: "GPU Fan", Index: 1}

	return hardware.NewMockAdapter(hardware.MockAdapterConfig{
		Fans: []hardware.MockFan{
			{ID: cpuFan, Capability: hardware.CapabilityFullControl, StartRPM: 800},
			{ID: gpuFan, Capability: hardware.CapabilityFullControl, StartRPM: 700},
		},
	})
}
