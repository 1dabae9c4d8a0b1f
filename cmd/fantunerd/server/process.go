package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

const (
	// dirPermissions is the mode the data directory is created with.
	dirPermissions = 0750

	// filePermissions is the mode the PID file is written with.
	filePermissions = 0600
)

// ErrInvalidPath reports a PID-file or data-directory path that escapes
// its intended root via a ".." path segment.
var ErrInvalidPath = errors.New("invalid path")

// pidFile resolves and validates a daemon's PID file location once, at
// construction, rather than re-validating the same path on every
// read/write/remove.
type pidFile struct {
	path string
}

func newPIDFile(dataDir string) (pidFile, error) {
	if err := rejectTraversal(dataDir); err != nil {
		return pidFile{}, fmt.Errorf("data directory: %w", err)
	}
	path := filepath.Join(dataDir, serverPIDFile)
	if err := rejectTraversal(path); err != nil {
		return pidFile{}, fmt.Errorf("pid file path: %w", err)
	}
	return pidFile{path: path}, nil
}

// rejectTraversal rejects an empty path and any path with a ".."
// segment once cleaned, so a PID file can never resolve outside its
// data directory.
func rejectTraversal(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	cleaned := filepath.Clean(path)
	for _, segment := range strings.Split(cleaned, string(filepath.Separator)) {
		if segment == ".." {
			return fmt.Errorf("%w: %s contains a parent directory reference", ErrInvalidPath, path)
		}
	}
	return nil
}

// read returns the PID stored in the file, or 0 if the file doesn't
// exist.
func (p pidFile) read() (int, error) {
	// #nosec G304 -- path is validated and normalized by newPIDFile
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file content: %w", err)
	}
	return pid, nil
}

func (p pidFile) write(pid int) error {
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(pid)), filePermissions); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

func (p pidFile) remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// processAlive reports whether pid names a live process, probing with
// the null signal rather than anything that could affect it.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// GetRunningPID returns the PID of the running daemon, if any. It
// returns 0 if no daemon is running, the PID file doesn't exist, or the
// recorded PID no longer names a live process.
func GetRunningPID(dataDir string) (int, error) {
	pf, err := newPIDFile(dataDir)
	if err != nil {
		return 0, err
	}

	pid, err := pf.read()
	if err != nil || pid == 0 {
		return 0, err
	}
	if !processAlive(pid) {
		return 0, nil
	}
	return pid, nil
}

// writePIDFile records the current process as the running daemon.
func (s *Server) writePIDFile() error {
	pf, err := newPIDFile(s.cfg.DataDir)
	if err != nil {
		return err
	}
	return pf.write(os.Getpid())
}

// removePIDFile clears the PID file on shutdown. Failure is logged, not
// returned: a stale PID file only costs the next GetRunningPID call a
// liveness probe that will correctly report "not running".
func (s *Server) removePIDFile() {
	pf, err := newPIDFile(s.cfg.DataDir)
	if err != nil {
		s.logger.Warn("invalid pid file path during removal", zap.Error(err))
		return
	}
	if err := pf.remove(); err != nil {
		s.logger.Warn("failed to remove pid file", zap.Error(err))
	}
}
