package server

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// shutdownGrace bounds how long SetAllAuto and the IPC listener get to
// wind down once Run's context is canceled.
const shutdownGrace = 5 * time.Second

// Run starts the daemon and blocks until ctx is canceled or a component
// fails. Shutdown order matters: the IPC listener stops accepting new
// work first, then every fan is handed back to hardware/BIOS control via
// Adapter.SetAllAuto so nothing is left pinned at a software-commanded
// speed, then the PID file is removed last.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.start = time.Now()
	s.mu.Unlock()

	if err := s.writePIDFile(); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	defer s.removePIDFile()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("starting control loop")
		s.loop.Run(runCtx)
	}()

	ipcDone := make(chan struct{})
	go func() {
		defer close(ipcDone)
		s.logger.Info("starting ipc endpoint", zap.String("socket", s.cfg.SocketPath))
		if err := s.ipcServer.Run(runCtx); err != nil {
			errCh <- fmt.Errorf("ipc endpoint error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err := <-errCh:
		cancel()
		_ = s.releaseFans()
		return err
	}

	<-ipcDone
	return s.releaseFans()
}

func (s *Server) releaseFans() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := s.adapter.SetAllAuto(ctx); err != nil {
		s.logger.Warn("failed to revert fans to auto on shutdown", zap.Error(err))
		return err
	}
	return nil
}
