package hardware

import (
	"context"
	"math"
	"sync"

	"github.com/wrale/fantuner/internal/apperr"
	"github.com/wrale/fantuner/internal/clock"
)

// MockFan seeds one fan in a MockAdapter.
type MockFan struct {
	ID         FanID
	Capability FanControlCapability
	StartRPM   float64
}

// MockSensor seeds one sensor in a MockAdapter.
type MockSensor struct {
	ID           SensorID
	DisplayName  string
	HardwareName string
	HardwareKind HardwareKind
	Unit         string
	StartValue   float64
}

// MockAdapterConfig seeds a MockAdapter's simulated hardware.
type MockAdapterConfig struct {
	Sensors []MockSensor
	Fans    []MockFan
	Clock   clock.Clock
	Rand    clock.Rand

	// FailRefresh, when true, makes every Refresh call fail. Tests flip
	// this to exercise the Safety Supervisor's failure counting.
	FailRefresh bool
}

type mockFanState struct {
	device MockFan
	duty   float64
	auto   bool
}

// MockAdapter is an in-memory implementation of Adapter used in tests
// and whenever fantunerd is started with --mock; it is deterministic
// when a Clock and Rand are injected. It never touches real hardware; a
// software-controlled fan's RPM is simulated as its start RPM plus 18
// RPM per duty percent, with a little injected noise, so tests can
// assert on both the command and its simulated effect.
type MockAdapter struct {
	mu sync.Mutex

	clock clock.Clock
	rand  clock.Rand

	initialized bool
	failRefresh bool

	sensors map[string]*SensorReading
	fans    map[string]*mockFanState
}

// NewMockAdapter constructs a MockAdapter from cfg. Missing Clock/Rand
// default to the real implementations.
func NewMockAdapter(cfg MockAdapterConfig) *MockAdapter {
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	r := cfg.Rand
	if r == nil {
		r = clock.RealRand{}
	}

	a := &MockAdapter{
		clock:       c,
		rand:        r,
		failRefresh: cfg.FailRefresh,
		sensors:     make(map[string]*SensorReading),
		fans:        make(map[string]*mockFanState),
	}

	now := c.Now()
	for _, s := range cfg.Sensors {
		a.sensors[s.ID.Key()] = &SensorReading{
			ID:           s.ID,
			DisplayName:  s.DisplayName,
			HardwareName: s.HardwareName,
			HardwareKind: s.HardwareKind,
			Value:        s.StartValue,
			Unit:         s.Unit,
			Timestamp:    now,
		}
	}
	for _, f := range cfg.Fans {
		a.fans[f.ID.Key()] = &mockFanState{device: f, auto: true}
	}

	return a
}

// SetFailRefresh toggles simulated Refresh failure, for tests.
func (a *MockAdapter) SetFailRefresh(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failRefresh = fail
}

// SetSensorValue overwrites a sensor's current value, for tests that
// drive the control loop through a temperature trajectory.
func (a *MockAdapter) SetSensorValue(id SensorID, value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sensors[id.Key()]; ok {
		s.Value = value
	}
}

func (a *MockAdapter) Initialize(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = true
	return nil, nil
}

func (a *MockAdapter) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failRefresh {
		return apperr.New("hardware.Refresh", apperr.AdapterIo, "mock adapter configured to fail")
	}

	now := a.clock.Now()
	for _, s := range a.sensors {
		s.Timestamp = now
		s.IsStale = false
	}
	return nil
}

func (a *MockAdapter) GetSensors() []SensorReading {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]SensorReading, 0, len(a.sensors))
	for _, s := range a.sensors {
		out = append(out, *s)
	}
	return out
}

func (a *MockAdapter) GetFans() []FanDevice {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]FanDevice, 0, len(a.fans))
	now := a.clock.Now()
	for _, f := range a.fans {
		rpm := 0.0
		if !f.auto && f.device.Capability == CapabilityFullControl && f.duty > 0 {
			rpm = math.Max(0, f.device.StartRPM+f.duty*18+(a.rand.Float64()-0.5)*20)
		} else if f.device.Capability != CapabilityUnavailable {
			rpm = f.device.StartRPM
		}
		duty := f.duty
		out = append(out, FanDevice{
			ID:           f.device.ID,
			DisplayName:  f.device.ID.Name,
			HardwareName: f.device.ID.Name,
			Capability:   f.device.Capability,
			RPM:          rpm,
			DutyPercent:  &duty,
			LastUpdate:   now,
		})
	}
	return out
}

func (a *MockAdapter) SetSpeed(ctx context.Context, fan FanID, percent float64) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	f, ok := a.fans[fan.Key()]
	if !ok {
		return false, apperr.New("hardware.SetSpeed", apperr.NotFound, "unknown fan")
	}
	if f.device.Capability != CapabilityFullControl {
		return false, nil
	}

	f.duty = percent
	f.auto = false
	return true, nil
}

func (a *MockAdapter) SetAuto(ctx context.Context, fan FanID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, ok := a.fans[fan.Key()]
	if !ok {
		return apperr.New("hardware.SetAuto", apperr.NotFound, "unknown fan")
	}
	f.auto = true
	return nil
}

func (a *MockAdapter) SetAllAuto(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, f := range a.fans {
		f.auto = true
	}
	return nil
}

var _ Adapter = (*MockAdapter)(nil)
