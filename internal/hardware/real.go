package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/wrale/fantuner/internal/apperr"
)

// SensorSource and FanSource are the substitution point for the real,
// vendor-specific hardware-access library (out of scope per the spec:
// "the underlying hardware-access library" is an external collaborator).
// A production build supplies an implementation that talks to the
// platform's sensor/fan SDK; RealAdapter itself only owns snapshotting,
// capability downgrade on I/O failure, and concurrency safety.
type SensorSource interface {
	ReadSensors(ctx context.Context) ([]SensorReading, error)
}

// FanSource is the fan-control half of the real hardware-access seam.
type FanSource interface {
	ReadFans(ctx context.Context) ([]FanDevice, error)
	WriteSpeed(ctx context.Context, fan FanID, percent float64) error
	WriteAuto(ctx context.Context, fan FanID) error
}

// RealAdapter implements Adapter over a SensorSource/FanSource pair
// supplied by the platform-specific hardware-access library.
type RealAdapter struct {
	sensors SensorSource
	fans    FanSource

	mu          sync.Mutex
	initialized bool

	lastSensors []SensorReading
	lastFans    []FanDevice
	capability  map[string]FanControlCapability
}

// NewRealAdapter constructs a RealAdapter over the given hardware-access
// implementations.
func NewRealAdapter(sensors SensorSource, fans FanSource) *RealAdapter {
	return &RealAdapter{
		sensors:    sensors,
		fans:       fans,
		capability: make(map[string]FanControlCapability),
	}
}

func (a *RealAdapter) Initialize(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return nil, nil
	}

	fans, err := a.fans.ReadFans(ctx)
	if err != nil {
		return nil, apperr.Wrap("hardware.Initialize", apperr.AdapterInit, "failed to enumerate fans", err)
	}
	sensors, err := a.sensors.ReadSensors(ctx)
	if err != nil {
		return nil, apperr.Wrap("hardware.Initialize", apperr.AdapterInit, "failed to enumerate sensors", err)
	}

	var warnings []string
	for _, f := range fans {
		a.capability[f.ID.Key()] = f.Capability
		if f.Capability == CapabilityUnknown {
			warnings = append(warnings, "fan "+f.ID.Key()+" reported unknown control capability")
		}
	}

	a.lastFans = fans
	a.lastSensors = sensors
	a.initialized = true
	return warnings, nil
}

func (a *RealAdapter) Refresh(ctx context.Context) error {
	sensors, err := a.sensors.ReadSensors(ctx)
	if err != nil {
		return apperr.Wrap("hardware.Refresh", apperr.AdapterIo, "sensor read failed", err)
	}
	fans, err := a.fans.ReadFans(ctx)
	if err != nil {
		return apperr.Wrap("hardware.Refresh", apperr.AdapterIo, "fan read failed", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range fans {
		if c, ok := a.capability[fans[i].ID.Key()]; ok && c == CapabilityMonitorOnly {
			fans[i].Capability = CapabilityMonitorOnly
		}
	}
	a.lastSensors = sensors
	a.lastFans = fans
	return nil
}

func (a *RealAdapter) GetSensors() []SensorReading {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]SensorReading, len(a.lastSensors))
	copy(out, a.lastSensors)
	return out
}

func (a *RealAdapter) GetFans() []FanDevice {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]FanDevice, len(a.lastFans))
	copy(out, a.lastFans)
	return out
}

func (a *RealAdapter) SetSpeed(ctx context.Context, fan FanID, percent float64) (bool, error) {
	a.mu.Lock()
	capability := a.capability[fan.Key()]
	a.mu.Unlock()

	if capability != CapabilityFullControl {
		return false, nil
	}

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	if err := a.fans.WriteSpeed(ctx, fan, percent); err != nil {
		a.mu.Lock()
		a.capability[fan.Key()] = CapabilityMonitorOnly
		a.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (a *RealAdapter) SetAuto(ctx context.Context, fan FanID) error {
	if err := a.fans.WriteAuto(ctx, fan); err != nil {
		return apperr.Wrap("hardware.SetAuto", apperr.AdapterIo, "failed to revert fan to auto", err)
	}
	return nil
}

func (a *RealAdapter) SetAllAuto(ctx context.Context) error {
	a.mu.Lock()
	fans := make([]FanDevice, len(a.lastFans))
	copy(fans, a.lastFans)
	a.mu.Unlock()

	var firstErr error
	for _, f := range fans {
		if f.Capability != CapabilityFullControl {
			continue
		}
		if err := a.fans.WriteAuto(ctx, f.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return apperr.Wrap("hardware.SetAllAuto", apperr.AdapterIo, "failed to revert one or more fans to auto", firstErr)
	}
	return nil
}

var _ Adapter = (*RealAdapter)(nil)

// staleAfter is how long a reading may go without a successful refresh
// before IsStale should be set by a SensorSource implementation.
const staleAfter = 5 * time.Second
