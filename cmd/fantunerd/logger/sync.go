package logger

import (
	"errors"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// ignorableSyncSubstrings covers the stdout/stderr sync failures that
// show up on ttys and pipes and carry no useful signal.
var ignorableSyncSubstrings = []string{
	"invalid argument",
	"inappropriate ioctl for device",
	"bad file descriptor",
}

// Sync flushes logger, swallowing the handful of stdout/stderr sync
// errors that are expected on a tty or closed pipe rather than a real
// logging failure.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	err := logger.Sync()
	if err == nil || errors.Is(err, syscall.EINVAL) {
		return nil
	}

	msg := err.Error()
	for _, s := range ignorableSyncSubstrings {
		if strings.Contains(msg, s) {
			return nil
		}
	}

	return err
}
