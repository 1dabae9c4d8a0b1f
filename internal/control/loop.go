// Package control implements the Control Loop: the single dedicated
// goroutine that ties the Hardware Adapter, Configuration Store, Curve
// Engine, and Safety Supervisor together into one tick, grounded on the
// teacher's thermal Manager monitor/update/applyPolicy split.
package control

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wrale/fantuner/internal/clock"
	"github.com/wrale/fantuner/internal/config"
	"github.com/wrale/fantuner/internal/curve"
	"github.com/wrale/fantuner/internal/events"
	"github.com/wrale/fantuner/internal/hardware"
	"github.com/wrale/fantuner/internal/safety"
)

// Telemetry is broadcast to subscribed IPC connections once per tick.
type Telemetry struct {
	Sensors   []hardware.SensorReading
	Fans      []hardware.FanDevice
	Emergency bool
}

// failureBackoff is how long the loop pauses after a Refresh failure
// before retrying.
const failureBackoff = time.Second

// Loop owns the last-known sensor/fan snapshots and the last-applied
// duty cycle per fan; nothing outside the loop goroutine touches this
// state directly.
type Loop struct {
	adapter    hardware.Adapter
	cfgService *config.Service
	supervisor *safety.Supervisor
	clock      clock.Clock
	logger     *zap.Logger

	telemetry *events.Topic[Telemetry]

	lastApplied map[string]float64
	lastOutput  map[string]float64

	unsubscribeAlerts func()
}

// NewLoop wires a Loop from its collaborators. The returned Loop is not
// running until Run is called.
func NewLoop(adapter hardware.Adapter, cfgService *config.Service, supervisor *safety.Supervisor, clk clock.Clock, logger *zap.Logger) *Loop {
	return &Loop{
		adapter:     adapter,
		cfgService:  cfgService,
		supervisor:  supervisor,
		clock:       clk,
		logger:      logger,
		telemetry:   events.NewTopic[Telemetry](),
		lastApplied: make(map[string]float64),
		lastOutput:  make(map[string]float64),
	}
}

// Telemetry subscribes to per-tick sensor/fan broadcasts.
func (l *Loop) Telemetry(buffer int) (<-chan Telemetry, func()) {
	return l.telemetry.Subscribe(buffer)
}

// Run executes ticks until ctx is cancelled. Unrecoverable errors at
// tick scope are logged, counted as Safety Supervisor failures, and the
// loop continues after failureBackoff rather than exiting.
func (l *Loop) Run(ctx context.Context) {
	alerts, unsubscribe := l.supervisor.Alerts(4)
	l.unsubscribeAlerts = unsubscribe
	defer unsubscribe()

	go l.watchAlerts(ctx, alerts)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := l.clock.Now()
		l.tick(ctx, start)

		elapsed := l.clock.Now().Sub(start)
		sleep := l.pollInterval() - elapsed
		if sleep < 0 {
			sleep = 0
		}

		select {
		case <-ctx.Done():
			return
		default:
			l.clock.Sleep(sleep)
		}
	}
}

func (l *Loop) pollInterval() time.Duration {
	return time.Duration(l.cfgService.Current().PollIntervalMs) * time.Millisecond
}

// watchAlerts reacts to Emergency entry by forcing every FullControl fan
// to 100%, replacing the teacher's direct OnCritical callback with the
// spec's publish/subscribe pattern.
func (l *Loop) watchAlerts(ctx context.Context, alerts <-chan safety.Alert) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-alerts:
			if !ok {
				return
			}
			if a.Level != safety.AlertCritical {
				continue
			}
			for _, fan := range l.adapter.GetFans() {
				if fan.Capability != hardware.CapabilityFullControl {
					continue
				}
				if _, err := l.adapter.SetSpeed(ctx, fan.ID, 100); err != nil {
					l.logger.Warn("failed to force fan to full speed on emergency entry",
						zap.String("fan", fan.ID.Key()), zap.Error(err))
				}
			}
		}
	}
}

func (l *Loop) tick(ctx context.Context, now time.Time) {
	if err := l.adapter.Refresh(ctx); err != nil {
		l.supervisor.RecordFailure(now)
		l.logger.Warn("adapter refresh failed", zap.Error(err))
		l.clock.Sleep(failureBackoff)
		return
	}
	l.supervisor.RecordSuccess()

	sensors := l.adapter.GetSensors()
	fans := l.adapter.GetFans()

	l.supervisor.Evaluate(now, sensors)
	emergency := l.supervisor.InEmergency()

	if !emergency {
		l.applyAssignments(ctx, sensors, fans)
	}

	if l.telemetry.Len() > 0 {
		l.telemetry.Publish(Telemetry{Sensors: sensors, Fans: fans, Emergency: emergency})
	}
}

func (l *Loop) applyAssignments(ctx context.Context, sensors []hardware.SensorReading, fans []hardware.FanDevice) {
	cfg := l.cfgService.Current()
	profile, ok := cfg.Profiles[cfg.ActiveProfileID]
	if !ok {
		return
	}

	for _, fan := range fans {
		if fan.Capability != hardware.CapabilityFullControl {
			continue
		}
		key := fan.ID.Key()
		assignment, ok := profile.Assignments[key]
		if !ok {
			continue
		}

		switch assignment.Mode {
		case config.ModeAuto:
			if err := l.adapter.SetAuto(ctx, fan.ID); err != nil {
				l.logger.Warn("set_auto failed", zap.String("fan", key), zap.Error(err))
			}
			delete(l.lastApplied, key)
			delete(l.lastOutput, key)

		case config.ModeManual:
			if assignment.ManualPercent == nil {
				continue
			}
			l.applyTarget(ctx, fan, key, *assignment.ManualPercent)

		case config.ModeCurve:
			c, ok := cfg.Curves[assignment.CurveID]
			if !ok {
				continue
			}
			temp, ok := l.resolveTemperature(&c, sensors)
			if !ok {
				continue
			}
			var lastOutputPtr *float64
			if v, ok := l.lastOutput[key]; ok {
				lastOutputPtr = &v
			}
			var target float64
			if c.Linear {
				target = curve.InterpolateLinear(&c, temp, lastOutputPtr)
			} else {
				target = curve.Interpolate(&c, temp, lastOutputPtr)
			}
			l.lastOutput[key] = target
			l.applyTarget(ctx, fan, key, target)
		}
	}
}

// resolveTemperature picks the curve's configured source sensor if
// present and reporting, otherwise the first CPU-kind temperature
// reading.
func (l *Loop) resolveTemperature(c *curve.Curve, sensors []hardware.SensorReading) (float64, bool) {
	if c.SourceSensorID != "" {
		for _, s := range sensors {
			if s.ID.Key() == c.SourceSensorID {
				return s.Value, true
			}
		}
	}
	for _, s := range sensors {
		if s.ID.Kind == hardware.SensorTemperature && s.HardwareKind == hardware.HardwareCpu {
			return s.Value, true
		}
	}
	return 0, false
}

// deadBand suppresses fan-speed churn for moves smaller than this.
const deadBand = 0.5

func (l *Loop) applyTarget(ctx context.Context, fan hardware.FanDevice, key string, target float64) {
	target = l.supervisor.EnforceMinimum(target)

	last, have := l.lastApplied[key]
	if have && absFloat(target-last) <= deadBand {
		return
	}

	if _, err := l.adapter.SetSpeed(ctx, fan.ID, target); err != nil {
		l.logger.Warn("set_speed failed", zap.String("fan", key), zap.Error(err))
		return
	}
	l.lastApplied[key] = target
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
