// Package server wires the Control Loop, Safety Supervisor, Configuration
// Service and IPC Endpoint together into the running fantunerd daemon.
package server

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wrale/fantuner/internal/clock"
	"github.com/wrale/fantuner/internal/config"
	"github.com/wrale/fantuner/internal/control"
	"github.com/wrale/fantuner/internal/hardware"
	"github.com/wrale/fantuner/internal/ipc"
	"github.com/wrale/fantuner/internal/safety"
)

const (
	// serverPIDFile is the name of the file storing the running daemon's PID.
	serverPIDFile = "fantunerd.pid"

	version = "dev"
)

// Config holds the server's resolved configuration.
type Config struct {
	SocketPath string
	ConfigPath string
	DataDir    string
}

// Server owns the daemon's long-running components and their lifecycle.
type Server struct {
	cfg    *Config
	logger *zap.Logger
	start  time.Time

	adapter    hardware.Adapter
	cfgService *config.Service
	supervisor *safety.Supervisor
	loop       *control.Loop
	ipcServer  *ipc.Server

	mu      sync.Mutex
	running bool
}

// Option configures a Server during New.
type Option func(*Server) error

// WithSocketPath sets the IPC Unix socket path.
func WithSocketPath(path string) Option {
	return func(s *Server) error {
		s.cfg.SocketPath = path
		return nil
	}
}

// WithConfigPath sets the AppConfiguration document path.
func WithConfigPath(path string) Option {
	return func(s *Server) error {
		s.cfg.ConfigPath = path
		return nil
	}
}

// WithDataDir sets the directory holding the PID file.
func WithDataDir(dir string) Option {
	return func(s *Server) error {
		s.cfg.DataDir = dir
		return nil
	}
}

// WithAdapter sets the hardware Adapter the daemon drives.
func WithAdapter(adapter hardware.Adapter) Option {
	return func(s *Server) error {
		s.adapter = adapter
		return nil
	}
}

// New constructs a Server, applying opts and wiring the Configuration
// Service, Safety Supervisor, Control Loop and IPC Endpoint over the
// supplied Adapter.
func New(ctx context.Context, logger *zap.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    &Config{},
		logger: logger,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("applying server option: %w", err)
		}
	}
	if s.adapter == nil {
		return nil, fmt.Errorf("no hardware adapter configured")
	}

	if err := os.MkdirAll(s.cfg.DataDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	store := config.NewFileStore(s.cfg.ConfigPath)
	cfgService, err := config.NewService(ctx, store, logger.Named("config"))
	if err != nil {
		return nil, fmt.Errorf("initializing configuration service: %w", err)
	}
	s.cfgService = cfgService

	current := cfgService.Current()
	supervisor := safety.NewSupervisor(safety.Thresholds{
		EmergencyCPUC:          current.EmergencyCPUC,
		EmergencyGPUC:          current.EmergencyGPUC,
		HysteresisC:            current.EmergencyHysteresisC,
		DefaultMinFanPercent:   current.DefaultMinFanPercent,
		MaxConsecutiveFailures: safety.DefaultMaxConsecutiveFailures,
	})
	s.supervisor = supervisor

	if _, err := s.adapter.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing hardware adapter: %w", err)
	}

	s.loop = control.NewLoop(s.adapter, cfgService, supervisor, clock.Real{}, logger.Named("control"))
	s.ipcServer = ipc.NewServer(s.cfg.SocketPath, version, s.adapter, cfgService, supervisor, s.loop, logger.Named("ipc"))

	return s, nil
}
