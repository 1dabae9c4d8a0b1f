// Package curve implements the fan curve interpolation engine: a pure,
// side-effect-free set of functions mapping a temperature and a curve
// definition to a fan duty percent, with hysteresis and slew limiting.
//
// Nothing here touches hardware, configuration storage, or a clock
// directly — every function takes exactly the values it needs and
// returns a value, the same "engine" shape the teacher's planned
// CoolingCurve was heading toward before being left a stub.
package curve

import "github.com/google/uuid"

// Point is one (temperature, fan percent) sample on a curve.
type Point struct {
	TempC   float64 `json:"tempC" yaml:"tempC"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// Curve is a piecewise map from temperature to fan duty cycle.
type Curve struct {
	ID             string  `json:"id" yaml:"id"`
	Name           string  `json:"name" yaml:"name"`
	SourceSensorID string  `json:"sourceSensorId,omitempty" yaml:"sourceSensorId,omitempty"`
	Points         []Point `json:"points" yaml:"points"`
	MinPercent     float64 `json:"minPercent" yaml:"minPercent"`
	MaxPercent     float64 `json:"maxPercent" yaml:"maxPercent"`
	HysteresisC    float64 `json:"hysteresisC" yaml:"hysteresisC"`
	ResponseSecs   float64 `json:"responseTimeSeconds" yaml:"responseTimeSeconds"`
	Linear         bool    `json:"linear,omitempty" yaml:"linear,omitempty"`
}

// New creates a Curve with a fresh id, the given name and MaxPercent
// 100. Callers still need to set Points (and MinPercent, which starts
// at 0) before the curve is usable.
func New(name string) *Curve {
	return &Curve{ID: uuid.New().String(), Name: name, MaxPercent: 100}
}

const (
	minTempC = -40.0
	maxTempC = 150.0
	minPct   = 0.0
	maxPct   = 100.0
)
