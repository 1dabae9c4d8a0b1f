package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wrale/fantuner/internal/apperr"
)

const (
	maxBackups     = 10
	backupsDirName = "backups"
	storeFilePerms = 0o600
	storeDirPerms  = 0o750
	backupPrefix   = "config_"
)

// Store is the durable single-document holder of AppConfiguration. Load
// and Save are the only points where bytes cross the filesystem
// boundary; everything above this layer (Service) works with validated
// Go structures.
type Store interface {
	// Load reads the configuration file. If the file is missing, it
	// returns Defaults() with no error. If the file is corrupt, the bad
	// bytes are preserved under a timestamped backup path and Defaults()
	// is returned along with a ConfigCorrupt-coded error describing what
	// happened. If the file exists but cannot be read, Defaults() is
	// returned with a ConfigCorrupt-coded error and no backup is made.
	Load(ctx context.Context) (*AppConfiguration, error)

	// Save atomically replaces the configuration file (write-temp then
	// rename) and rotates a timestamped backup into the backups
	// directory, retaining at most maxBackups.
	Save(ctx context.Context, cfg *AppConfiguration) error
}

// FileStore is the production Store, backed by a JSON document on disk.
type FileStore struct {
	path    string
	backups string
	nowFunc func() time.Time
}

// NewFileStore creates a FileStore rooted at path, with a sibling
// "backups" directory.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:    path,
		backups: filepath.Join(filepath.Dir(path), backupsDirName),
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func (s *FileStore) Load(ctx context.Context) (*AppConfiguration, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Defaults(), apperr.Wrap("config.Load", apperr.ConfigCorrupt, "failed to read configuration file, defaults substituted", err)
	}

	var cfg AppConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Defaults(), s.quarantine(data, "configuration file is corrupt, defaults substituted", err)
	}

	if err := cfg.Validate(); err != nil {
		return Defaults(), s.quarantine(data, "configuration file failed validation, defaults substituted", err)
	}

	return &cfg, nil
}

// quarantine preserves data under backups/config_corrupt_<timestamp>.json
// and returns a ConfigCorrupt error describing why, wrapping cause.
func (s *FileStore) quarantine(data []byte, message string, cause error) error {
	if mkErr := os.MkdirAll(s.backups, storeDirPerms); mkErr != nil {
		return apperr.Wrap("config.Load", apperr.ConfigCorrupt, message+" (backup also failed)", mkErr)
	}
	dest := filepath.Join(s.backups, fmt.Sprintf("config_corrupt_%d.json", s.nowFunc().UnixNano()))
	if writeErr := os.WriteFile(dest, data, storeFilePerms); writeErr != nil {
		return apperr.Wrap("config.Load", apperr.ConfigCorrupt, message+" (backup also failed)", writeErr)
	}
	return apperr.Wrap("config.Load", apperr.ConfigCorrupt, message, cause)
}

func (s *FileStore) Save(ctx context.Context, cfg *AppConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return apperr.Wrap("config.Save", apperr.ConfigInvalid, "refusing to persist invalid configuration", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return apperr.Wrap("config.Save", apperr.ConfigInvalid, "failed to marshal configuration", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, storeDirPerms); err != nil {
		return apperr.Wrap("config.Save", apperr.ConfigInvalid, "failed to create configuration directory", err)
	}

	if err := s.rotateBackup(); err != nil {
		return apperr.Wrap("config.Save", apperr.ConfigInvalid, "failed to rotate configuration backup", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, storeFilePerms); err != nil {
		return apperr.Wrap("config.Save", apperr.ConfigInvalid, "failed to write temporary configuration file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apperr.Wrap("config.Save", apperr.ConfigInvalid, "failed to install configuration file", err)
	}

	return nil
}

// rotateBackup copies the current configuration file into the backups
// directory under a timestamped name, then prunes to maxBackups.
func (s *FileStore) rotateBackup() error {
	current, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := os.MkdirAll(s.backups, storeDirPerms); err != nil {
		return err
	}

	dest := filepath.Join(s.backups, fmt.Sprintf("%s%d.json", backupPrefix, s.nowFunc().UnixNano()))
	if err := os.WriteFile(dest, current, storeFilePerms); err != nil {
		return err
	}

	return s.pruneBackups()
}

func (s *FileStore) pruneBackups() error {
	entries, err := os.ReadDir(s.backups)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) || strings.Contains(e.Name(), "corrupt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for len(names) > maxBackups {
		oldest := names[0]
		names = names[1:]
		if err := os.Remove(filepath.Join(s.backups, oldest)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

var _ Store = (*FileStore)(nil)
