package control

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wrale/fantuner/internal/config"
	"github.com/wrale/fantuner/internal/curve"
	"github.com/wrale/fantuner/internal/hardware"
	"github.com/wrale/fantuner/internal/safety"
)

// fakeClock is a controllable Clock for deterministic loop tests: Sleep
// is a no-op so tests run instantly, and Now advances only when the test
// asks it to.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(time.Duration)   {}

var (
	cpuSensorID = hardware.SensorID{HardwareID: "cpu0", Name: "Package", Kind: hardware.SensorTemperature}
	fanID       = hardware.FanID{HardwareID: "mobo0", Name: "CPU Fan", Index: 0}
)

func newTestLoop(t *testing.T, cfg *config.AppConfiguration) (*Loop, *hardware.MockAdapter, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Now()}

	adapter := hardware.NewMockAdapter(hardware.MockAdapterConfig{
		Sensors: []hardware.MockSensor{{ID: cpuSensorID, HardwareKind: hardware.HardwareCpu, StartValue: 40}},
		Fans:    []hardware.MockFan{{ID: fanID, Capability: hardware.CapabilityFullControl, StartRPM: 300}},
		Clock:   clk,
	})

	store := config.NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, store.Save(context.Background(), cfg))
	svc, err := config.NewService(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	supervisor := safety.NewSupervisor(safety.Thresholds{
		EmergencyCPUC: 95, EmergencyGPUC: 95, HysteresisC: 5, DefaultMinFanPercent: 10, MaxConsecutiveFailures: 3,
	})

	loop := NewLoop(adapter, svc, supervisor, clk, zap.NewNop())
	return loop, adapter, clk
}

func curveConfig(t *testing.T) *config.AppConfiguration {
	t.Helper()
	cfg := config.Defaults()
	c := curve.New("test")
	c.Points = []curve.Point{{TempC: 30, Percent: 20}, {TempC: 80, Percent: 100}}
	c.MaxPercent = 100
	cfg.Curves = map[string]curve.Curve{c.ID: *c}

	profile := cfg.Profiles[cfg.ActiveProfileID]
	profile.Assignments = map[string]config.FanAssignment{
		fanID.Key(): {FanKey: fanID.Key(), Mode: config.ModeCurve, CurveID: c.ID},
	}
	cfg.Profiles[cfg.ActiveProfileID] = profile
	return cfg
}

func TestLoopTickAppliesCurveTarget(t *testing.T) {
	loop, adapter, clk := newTestLoop(t, curveConfig(t))
	ctx := context.Background()

	adapter.SetSensorValue(cpuSensorID, 80)
	loop.tick(ctx, clk.now)

	fans := adapter.GetFans()
	require.Len(t, fans, 1)
	assert.InDelta(t, 100, *fans[0].DutyPercent, 0.01)
}

func TestLoopTickDeadBandSuppressesChurn(t *testing.T) {
	loop, adapter, clk := newTestLoop(t, curveConfig(t))
	ctx := context.Background()

	adapter.SetSensorValue(cpuSensorID, 55)
	loop.tick(ctx, clk.now)
	first := *adapter.GetFans()[0].DutyPercent

	adapter.SetSensorValue(cpuSensorID, 55.01)
	loop.tick(ctx, clk.now)
	second := *adapter.GetFans()[0].DutyPercent

	assert.Equal(t, first, second)
}

func TestLoopTickManualMode(t *testing.T) {
	cfg := config.Defaults()
	manual := 77.0
	profile := cfg.Profiles[cfg.ActiveProfileID]
	profile.Assignments = map[string]config.FanAssignment{
		fanID.Key(): {FanKey: fanID.Key(), Mode: config.ModeManual, ManualPercent: &manual},
	}
	cfg.Profiles[cfg.ActiveProfileID] = profile

	loop, adapter, clk := newTestLoop(t, cfg)
	loop.tick(context.Background(), clk.now)

	assert.InDelta(t, 77, *adapter.GetFans()[0].DutyPercent, 0.01)
}

func TestLoopTickEmergencySkipsAssignments(t *testing.T) {
	loop, adapter, clk := newTestLoop(t, curveConfig(t))
	ctx := context.Background()

	adapter.SetSensorValue(cpuSensorID, 96)
	loop.tick(ctx, clk.now)

	assert.True(t, loop.supervisor.InEmergency())
	assert.Equal(t, 0.0, *adapter.GetFans()[0].DutyPercent, "curve assignment must not be applied during emergency")
}

func TestLoopTickRefreshFailureRecordsSupervisorFailure(t *testing.T) {
	loop, adapter, clk := newTestLoop(t, curveConfig(t))
	adapter.SetFailRefresh(true)

	loop.tick(context.Background(), clk.now)
	loop.tick(context.Background(), clk.now)
	loop.tick(context.Background(), clk.now)

	assert.True(t, loop.supervisor.InEmergency())
}

func TestLoopTickAutoModeForgetsLastApplied(t *testing.T) {
	cfg := config.Defaults()
	profile := cfg.Profiles[cfg.ActiveProfileID]
	profile.Assignments = map[string]config.FanAssignment{
		fanID.Key(): {FanKey: fanID.Key(), Mode: config.ModeAuto},
	}
	cfg.Profiles[cfg.ActiveProfileID] = profile

	loop, _, clk := newTestLoop(t, cfg)
	loop.lastApplied[fanID.Key()] = 42
	loop.tick(context.Background(), clk.now)

	_, stillThere := loop.lastApplied[fanID.Key()]
	assert.False(t, stillThere)
}

func TestWatchAlertsForcesFullControlFansToMaxOnEmergency(t *testing.T) {
	loop, adapter, clk := newTestLoop(t, curveConfig(t))

	alerts, unsubscribe := loop.supervisor.Alerts(4)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.watchAlerts(ctx, alerts)

	adapter.SetSensorValue(cpuSensorID, 96)
	loop.supervisor.Evaluate(clk.now, adapter.GetSensors())
	require.True(t, loop.supervisor.InEmergency())

	require.Eventually(t, func() bool {
		for _, fan := range adapter.GetFans() {
			if fan.Capability != hardware.CapabilityFullControl {
				continue
			}
			if fan.DutyPercent == nil || *fan.DutyPercent != 100 {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond, "every FullControl fan should be commanded to 100 percent on emergency entry")
}

func TestLoopRunForcesFullControlFansToMaxOnEmergency(t *testing.T) {
	loop, adapter, _ := newTestLoop(t, curveConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	adapter.SetSensorValue(cpuSensorID, 96)

	require.Eventually(t, func() bool {
		for _, fan := range adapter.GetFans() {
			if fan.Capability != hardware.CapabilityFullControl {
				continue
			}
			if fan.DutyPercent == nil || *fan.DutyPercent != 100 {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond, "Run should drive every FullControl fan to 100 percent once emergency is detected")
}
