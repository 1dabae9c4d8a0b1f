package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/fantuner/internal/apperr"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	s := NewFileStore(path)
	s.nowFunc = func() time.Time { return time.Unix(0, 0).UTC() }
	return s, path
}

func TestFileStoreLoadMissingReturnsDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults().PollIntervalMs, cfg.PollIntervalMs)
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	want := Defaults()
	want.PollIntervalMs = 2500

	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.PollIntervalMs, got.PollIntervalMs)
	assert.Equal(t, want.ActiveProfileID, got.ActiveProfileID)
	assert.Equal(t, len(want.Curves), len(got.Curves))
}

func TestFileStoreRejectsInvalidOnSave(t *testing.T) {
	s, _ := newTestStore(t)
	bad := Defaults()
	bad.PollIntervalMs = 1

	err := s.Save(context.Background(), bad)
	require.Error(t, err)
	assert.Equal(t, apperr.ConfigInvalid, apperr.CodeOf(err))
}

func TestFileStoreQuarantinesCorruptFile(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	cfg, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.ConfigCorrupt, apperr.CodeOf(err))
	assert.Equal(t, Defaults().PollIntervalMs, cfg.PollIntervalMs)

	entries, rdErr := os.ReadDir(s.backups)
	require.NoError(t, rdErr)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "corrupt")
}

func TestFileStoreQuarantinesInvalidConfiguration(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"pollIntervalMs":1}`), 0o600))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.ConfigCorrupt, apperr.CodeOf(err))
}

func TestFileStoreRotatesAndPrunesBackups(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	tick := int64(0)
	s.nowFunc = func() time.Time {
		tick++
		return time.Unix(0, tick)
	}

	cfg := Defaults()
	for i := 0; i < maxBackups+5; i++ {
		require.NoError(t, s.Save(ctx, cfg))
	}

	entries, err := os.ReadDir(s.backups)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), maxBackups)
}
