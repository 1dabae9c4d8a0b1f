package ipcclient

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wrale/fantuner/internal/clock"
	"github.com/wrale/fantuner/internal/config"
	"github.com/wrale/fantuner/internal/control"
	"github.com/wrale/fantuner/internal/hardware"
	"github.com/wrale/fantuner/internal/ipc"
	"github.com/wrale/fantuner/internal/safety"
)

func startDaemon(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "fantunerd.sock")

	fan := hardware.FanID{HardwareID: "mobo0", Name: "CPU Fan", Index: 0}
	adapter := hardware.NewMockAdapter(hardware.MockAdapterConfig{
		Fans: []hardware.MockFan{{ID: fan, Capability: hardware.CapabilityFullControl, StartRPM: 300}},
	})

	store := config.NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	svc, err := config.NewService(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	supervisor := safety.NewSupervisor(safety.Thresholds{EmergencyCPUC: 95, EmergencyGPUC: 95, HysteresisC: 5, DefaultMinFanPercent: 10})
	loop := control.NewLoop(adapter, svc, supervisor, clock.Real{}, zap.NewNop())

	server := ipc.NewServer(socketPath, "test", adapter, svc, supervisor, loop, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go server.Run(ctx)
	t.Cleanup(cancel)

	require.Eventually(t, func() bool {
		c, err := Dial(socketPath)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, time.Second, 10*time.Millisecond)

	return socketPath
}

func TestClientGetStatus(t *testing.T) {
	socketPath := startDaemon(t)

	c, err := Dial(socketPath)
	require.NoError(t, err)
	defer c.Close()

	status, err := c.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Running)
}

func TestClientSetProfileNotFound(t *testing.T) {
	socketPath := startDaemon(t)

	c, err := Dial(socketPath)
	require.NoError(t, err)
	defer c.Close()

	err = c.SetProfile("missing")
	assert.Error(t, err)
}

func TestClientSubscribeSensorsRoundTrips(t *testing.T) {
	socketPath := startDaemon(t)

	c, err := Dial(socketPath)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SubscribeSensors(100))
	// the daemon only pushes on a control-loop tick, which this test does
	// not drive; confirm subscribe itself round-trips cleanly instead of
	// racing a tick that may never come.
	_, err = c.GetStatus()
	require.NoError(t, err)
}
