// Package config implements the Configuration Store: the durable holder
// of curves, profiles, and thresholds, mutated only through atomic
// update transactions that yield a new snapshot.
package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wrale/fantuner/internal/curve"
)

// FanControlMode selects how a fan's duty cycle is determined.
type FanControlMode string

const (
	ModeAuto   FanControlMode = "auto"
	ModeManual FanControlMode = "manual"
	ModeCurve  FanControlMode = "curve"
)

// FanAssignment binds one fan to a control mode.
type FanAssignment struct {
	FanKey             string         `json:"fanKey" yaml:"fanKey"`
	Mode               FanControlMode `json:"mode" yaml:"mode"`
	ManualPercent      *float64       `json:"manualPercent,omitempty" yaml:"manualPercent,omitempty"`
	CurveID            string         `json:"curveId,omitempty" yaml:"curveId,omitempty"`
	LastAppliedPercent *float64       `json:"lastAppliedPercent,omitempty" yaml:"lastAppliedPercent,omitempty"`
}

// FanProfile is a named mapping from fan to assignment.
type FanProfile struct {
	ID          string                   `json:"id" yaml:"id"`
	Name        string                   `json:"name" yaml:"name"`
	IsDefault   bool                     `json:"isDefault" yaml:"isDefault"`
	Assignments map[string]FanAssignment `json:"assignments" yaml:"assignments"`
	CreatedAt   time.Time                `json:"createdAt" yaml:"createdAt"`
	ModifiedAt  time.Time                `json:"modifiedAt" yaml:"modifiedAt"`
}

// NewProfile creates an empty profile with a fresh id.
func NewProfile(name string, isDefault bool) *FanProfile {
	now := time.Now().UTC()
	return &FanProfile{
		ID:          uuid.New().String(),
		Name:        name,
		IsDefault:   isDefault,
		Assignments: make(map[string]FanAssignment),
		CreatedAt:   now,
		ModifiedAt:  now,
	}
}

// AppConfiguration is the full persisted configuration document.
type AppConfiguration struct {
	PollIntervalMs       int                    `json:"pollIntervalMs" yaml:"pollIntervalMs"`
	EmergencyCPUC        float64                `json:"emergencyCpuC" yaml:"emergencyCpuC"`
	EmergencyGPUC        float64                `json:"emergencyGpuC" yaml:"emergencyGpuC"`
	EmergencyHysteresisC float64                `json:"emergencyHysteresisC" yaml:"emergencyHysteresisC"`
	DefaultMinFanPercent float64                `json:"defaultMinFanPercent" yaml:"defaultMinFanPercent"`
	ActiveProfileID      string                 `json:"activeProfileId" yaml:"activeProfileId"`
	Curves               map[string]curve.Curve `json:"curves" yaml:"curves"`
	Profiles             map[string]FanProfile  `json:"profiles" yaml:"profiles"`
	TelemetryEnabled     bool                   `json:"telemetryEnabled" yaml:"telemetryEnabled"`
}

// Defaults returns a minimal, valid AppConfiguration: one default profile
// with no assignments, one starter curve, and conservative thresholds.
func Defaults() *AppConfiguration {
	c := curve.New("Default")
	c.Points = []curve.Point{{TempC: 40, Percent: 30}, {TempC: 80, Percent: 100}}
	c.MinPercent = 20
	c.MaxPercent = 100
	c.HysteresisC = 2

	p := NewProfile("Default", true)

	return &AppConfiguration{
		PollIntervalMs:       1000,
		EmergencyCPUC:        95,
		EmergencyGPUC:        95,
		EmergencyHysteresisC: 5,
		DefaultMinFanPercent: 20,
		ActiveProfileID:      p.ID,
		Curves:               map[string]curve.Curve{c.ID: *c},
		Profiles:             map[string]FanProfile{p.ID: *p},
		TelemetryEnabled:     true,
	}
}

// Validate checks the invariants spec'd for AppConfiguration.
func (c *AppConfiguration) Validate() error {
	if c.PollIntervalMs < 100 || c.PollIntervalMs > 10000 {
		return fmt.Errorf("pollIntervalMs %d out of range [100,10000]", c.PollIntervalMs)
	}
	if c.EmergencyCPUC < 50 || c.EmergencyCPUC > 120 {
		return fmt.Errorf("emergencyCpuC %.2f out of range [50,120]", c.EmergencyCPUC)
	}
	if c.EmergencyGPUC < 50 || c.EmergencyGPUC > 120 {
		return fmt.Errorf("emergencyGpuC %.2f out of range [50,120]", c.EmergencyGPUC)
	}
	if c.DefaultMinFanPercent < 0 || c.DefaultMinFanPercent > 50 {
		return fmt.Errorf("defaultMinFanPercent %.2f out of range [0,50]", c.DefaultMinFanPercent)
	}
	if len(c.Curves) < 1 {
		return fmt.Errorf("at least one curve is required")
	}
	if len(c.Profiles) < 1 {
		return fmt.Errorf("at least one profile is required")
	}

	if _, ok := c.Profiles[c.ActiveProfileID]; !ok {
		return fmt.Errorf("activeProfileId %q does not resolve to a profile", c.ActiveProfileID)
	}

	defaults := 0
	for _, p := range c.Profiles {
		if p.IsDefault {
			defaults++
		}
		for fanKey, a := range p.Assignments {
			if a.Mode == ModeCurve {
				if _, ok := c.Curves[a.CurveID]; !ok {
					return fmt.Errorf("profile %q assignment for fan %q references unknown curve %q", p.Name, fanKey, a.CurveID)
				}
			}
		}
	}
	if defaults != 1 {
		return fmt.Errorf("exactly one profile must be default, found %d", defaults)
	}

	return nil
}
