package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wrale/fantuner/internal/hardware"
)

func newTestAdapter() *hardware.MockAdapter {
	fan := hardware.FanID{HardwareID: "mobo0", Name: "CPU Fan", Index: 0}
	return hardware.NewMockAdapter(hardware.MockAdapterConfig{
		Fans: []hardware.MockFan{{ID: fan, Capability: hardware.CapabilityFullControl, StartRPM: 500}},
	})
}

func TestServerRunReleasesFansOnShutdown(t *testing.T) {
	dir := t.TempDir()
	adapter := newTestAdapter()

	srv, err := New(context.Background(), zap.NewNop(),
		WithSocketPath(filepath.Join(dir, "fantunerd.sock")),
		WithConfigPath(filepath.Join(dir, "config.json")),
		WithDataDir(dir),
		WithAdapter(adapter),
	)
	require.NoError(t, err)

	fan := hardware.FanID{HardwareID: "mobo0", Name: "CPU Fan", Index: 0}
	_, err = adapter.SetSpeed(context.Background(), fan, 80)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		pid, _ := GetRunningPID(dir)
		return pid != 0
	}, time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	for _, f := range adapter.GetFans() {
		assert.InDelta(t, 500, f.RPM, 1, "fan should report its auto-control baseline RPM after shutdown")
	}

	pid, err := GetRunningPID(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, pid, "pid file should be removed after shutdown")
}

func TestServerNewRequiresAdapter(t *testing.T) {
	dir := t.TempDir()
	_, err := New(context.Background(), zap.NewNop(),
		WithSocketPath(filepath.Join(dir, "fantunerd.sock")),
		WithConfigPath(filepath.Join(dir, "config.json")),
		WithDataDir(dir),
	)
	assert.Error(t, err)
}
