// Package safety implements the Safety Supervisor: the small
// Normal/Emergency state machine that overrides curve and manual fan
// control whenever CPU or GPU temperatures run away, independent of
// whatever the Configuration Store or Control Loop are currently doing.
package safety

import (
	"sync"
	"time"

	"github.com/wrale/fantuner/internal/events"
	"github.com/wrale/fantuner/internal/hardware"
)

// State is one of the two Safety Supervisor states.
type State string

const (
	StateNormal    State = "normal"
	StateEmergency State = "emergency"
)

// AlertLevel classifies a published Alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert is published on entry to and exit from Emergency.
type Alert struct {
	Level           AlertLevel
	Reason          string
	TriggeringTempC float64
	Timestamp       time.Time
}

// Thresholds bundles the configurable inputs to the state machine.
type Thresholds struct {
	EmergencyCPUC          float64
	EmergencyGPUC          float64
	HysteresisC            float64
	DefaultMinFanPercent   float64
	MaxConsecutiveFailures int
}

// DefaultMaxConsecutiveFailures matches spec.md's default when a config
// does not otherwise say.
const DefaultMaxConsecutiveFailures = 5

// Status is a point-in-time snapshot for IPC / diagnostics.
type Status struct {
	State            State
	Reason           string
	TriggeringTempC  float64
	EnteredAt        time.Time
	FailureCount     int
	Degraded         bool
	ActiveWarnings   []string
}

// Supervisor is the Normal/Emergency state machine. Safe for concurrent
// use; RecordSuccess/RecordFailure/Evaluate are typically called once
// per control-loop tick from a single goroutine, but the read accessors
// may be called concurrently from the IPC layer.
type Supervisor struct {
	mu sync.Mutex

	thresholds Thresholds

	state           State
	reason          string
	triggeringTempC float64
	enteredAt       time.Time

	failureCount int

	warnings []string

	alerts *events.Topic[Alert]
}

// NewSupervisor creates a Supervisor in the Normal state.
func NewSupervisor(thresholds Thresholds) *Supervisor {
	if thresholds.MaxConsecutiveFailures <= 0 {
		thresholds.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	return &Supervisor{
		thresholds: thresholds,
		state:      StateNormal,
		alerts:     events.NewTopic[Alert](),
	}
}

// Alerts subscribes to Emergency entry/exit notifications.
func (s *Supervisor) Alerts(buffer int) (<-chan Alert, func()) {
	return s.alerts.Subscribe(buffer)
}

// UpdateThresholds atomically replaces the thresholds used by future
// Evaluate calls.
func (s *Supervisor) UpdateThresholds(t Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.MaxConsecutiveFailures <= 0 {
		t.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	s.thresholds = t
}

// RecordSuccess resets the consecutive-failure counter.
func (s *Supervisor) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount = 0
}

// RecordFailure increments the consecutive-failure counter and, if it
// reaches the configured maximum, forces an Emergency transition with a
// failure-counter reason. now is injected for deterministic testing.
func (s *Supervisor) RecordFailure(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount++
	if s.state == StateNormal && s.failureCount >= s.thresholds.MaxConsecutiveFailures {
		s.enterEmergency(now, "consecutive sensor failures reached the configured limit", 0)
	}
}

// Evaluate feeds the latest sensor snapshot through the state machine,
// transitioning between Normal and Emergency per spec, and recomputes
// active warnings. now is injected for deterministic testing.
func (s *Supervisor) Evaluate(now time.Time, sensors []hardware.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxCPU, maxGPU float64
	var haveCPU, haveGPU bool
	var staleNames []string

	for _, r := range sensors {
		if r.ID.Kind != hardware.SensorTemperature {
			continue
		}
		if r.IsStale {
			staleNames = append(staleNames, r.DisplayName)
		}
		switch {
		case r.HardwareKind == hardware.HardwareCpu:
			if !haveCPU || r.Value > maxCPU {
				maxCPU, haveCPU = r.Value, true
			}
		case r.HardwareKind.IsGpu():
			if !haveGPU || r.Value > maxGPU {
				maxGPU, haveGPU = r.Value, true
			}
		}
	}

	switch s.state {
	case StateNormal:
		if haveCPU && maxCPU >= s.thresholds.EmergencyCPUC {
			s.enterEmergency(now, "CPU temperature reached the emergency threshold", maxCPU)
		} else if haveGPU && maxGPU >= s.thresholds.EmergencyGPUC {
			s.enterEmergency(now, "GPU temperature reached the emergency threshold", maxGPU)
		}
	case StateEmergency:
		cpuClear := !haveCPU || maxCPU <= s.thresholds.EmergencyCPUC-s.thresholds.HysteresisC
		gpuClear := !haveGPU || maxGPU <= s.thresholds.EmergencyGPUC-s.thresholds.HysteresisC
		if cpuClear && gpuClear {
			s.exitEmergency(now)
		}
	}

	s.warnings = buildWarnings(haveCPU, maxCPU, s.thresholds.EmergencyCPUC, "CPU")
	s.warnings = append(s.warnings, buildWarnings(haveGPU, maxGPU, s.thresholds.EmergencyGPUC, "GPU")...)
	for _, name := range staleNames {
		s.warnings = append(s.warnings, name+" reading is stale")
	}
}

func buildWarnings(have bool, max, threshold float64, label string) []string {
	if !have {
		return nil
	}
	if max >= threshold-10 && max < threshold {
		return []string{label + " temperature high"}
	}
	return nil
}

func (s *Supervisor) enterEmergency(now time.Time, reason string, triggeringTempC float64) {
	s.state = StateEmergency
	s.reason = reason
	s.triggeringTempC = triggeringTempC
	s.enteredAt = now
	s.alerts.Publish(Alert{Level: AlertCritical, Reason: reason, TriggeringTempC: triggeringTempC, Timestamp: now})
}

func (s *Supervisor) exitEmergency(now time.Time) {
	s.state = StateNormal
	s.reason = ""
	s.triggeringTempC = 0
	s.enteredAt = time.Time{}
	s.alerts.Publish(Alert{Level: AlertInfo, Reason: "temperatures returned below the emergency threshold", Timestamp: now})
}

// InEmergency reports whether the supervisor is currently in the
// Emergency state.
func (s *Supervisor) InEmergency() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateEmergency
}

// EnforceMinimum clamps percent up to the configured default minimum.
func (s *Supervisor) EnforceMinimum(percent float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if percent < s.thresholds.DefaultMinFanPercent {
		return s.thresholds.DefaultMinFanPercent
	}
	return percent
}

// ValidateFanSpeed reports whether percent is an acceptable target for
// fan, and an optional non-fatal warning.
func (s *Supervisor) ValidateFanSpeed(percent float64, fan hardware.FanDevice) (ok bool, warning string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if percent < 0 || percent > 100 {
		return false, "out of range"
	}
	if percent < s.thresholds.DefaultMinFanPercent {
		return false, "below minimum"
	}
	if percent == 0 && fan.RPM > 0 {
		return true, "setting fan to 0% may stop it"
	}
	return true, ""
}

// Status returns a snapshot for diagnostics and IPC.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	warnings := make([]string, len(s.warnings))
	copy(warnings, s.warnings)
	return Status{
		State:           s.state,
		Reason:          s.reason,
		TriggeringTempC: s.triggeringTempC,
		EnteredAt:       s.enteredAt,
		FailureCount:    s.failureCount,
		Degraded:        s.failureCount > 0,
		ActiveWarnings:  warnings,
	}
}
