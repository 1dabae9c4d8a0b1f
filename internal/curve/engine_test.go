package curve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolateLinearBracket(t *testing.T) {
	c := &Curve{
		Points:     []Point{{TempC: 30, Percent: 30}, {TempC: 70, Percent: 70}},
		MinPercent: 0,
		MaxPercent: 100,
	}

	tests := []struct {
		temp float64
		want float64
	}{
		{30, 30}, {40, 40}, {50, 50}, {60, 60}, {70, 70},
	}

	for _, tt := range tests {
		got := InterpolateLinear(c, tt.temp, nil)
		assert.InDelta(t, tt.want, got, 0.001, "temp=%v", tt.temp)
	}
}

func TestInterpolateCosineMidpoint(t *testing.T) {
	c := &Curve{
		Points:     []Point{{TempC: 30, Percent: 30}, {TempC: 60, Percent: 60}},
		MinPercent: 0,
		MaxPercent: 100,
	}

	got := Interpolate(c, 45, nil)
	assert.InDelta(t, 45, got, 1.0)
}

func TestInterpolateClampsBelowMinimum(t *testing.T) {
	c := &Curve{
		Points:     []Point{{TempC: 30, Percent: 10}, {TempC: 60, Percent: 60}},
		MinPercent: 30,
		MaxPercent: 100,
	}

	got := Interpolate(c, 30, nil)
	assert.Equal(t, 30.0, got)
}

func TestInterpolateHysteresisHold(t *testing.T) {
	c := &Curve{
		Points:      []Point{{TempC: 30, Percent: 30}, {TempC: 60, Percent: 60}},
		MinPercent:  0,
		MaxPercent:  100,
		HysteresisC: 5,
	}

	last := 43.0
	got := Interpolate(c, 45, &last)
	assert.Equal(t, 43.0, got)
}

func TestInterpolateNoPoints(t *testing.T) {
	c := &Curve{MinPercent: 12, MaxPercent: 100}
	assert.Equal(t, 12.0, Interpolate(c, 50, nil))
}

func TestInterpolateSinglePoint(t *testing.T) {
	c := &Curve{Points: []Point{{TempC: 40, Percent: 85}}, MinPercent: 0, MaxPercent: 80}
	assert.Equal(t, 80.0, Interpolate(c, 40, nil))
}

func TestInterpolateMonotonic(t *testing.T) {
	c := &Curve{
		Points: []Point{
			{TempC: 20, Percent: 10},
			{TempC: 40, Percent: 40},
			{TempC: 60, Percent: 70},
			{TempC: 80, Percent: 100},
		},
		MinPercent: 0,
		MaxPercent: 100,
	}

	prev := math.Inf(-1)
	for temp := 0.0; temp <= 100; temp += 0.5 {
		got := Interpolate(c, temp, nil)
		assert.True(t, got >= 0 && got <= 100)
		assert.GreaterOrEqual(t, got, prev-1e-9, "not monotonic at temp=%v", temp)
		prev = got
	}
}

func TestApplyResponseTimeNeverOvershoots(t *testing.T) {
	cases := []struct {
		current, target, response, delta float64
	}{
		{20, 80, 10, 1},
		{80, 20, 10, 1},
		{50, 50, 5, 1},
		{0, 100, 0, 1},
	}
	for _, c := range cases {
		got := ApplyResponseTime(c.current, c.target, c.response, c.delta)
		if c.target >= c.current {
			assert.LessOrEqual(t, got, c.target)
			assert.GreaterOrEqual(t, got, c.current)
		} else {
			assert.GreaterOrEqual(t, got, c.target)
			assert.LessOrEqual(t, got, c.current)
		}
	}
}

func TestApplyResponseTimeConverges(t *testing.T) {
	current, target, response, delta := 0.0, 100.0, 10.0, 1.0
	maxTicks := int(math.Ceil(response / delta))

	ticks := 0
	for current != target && ticks <= maxTicks {
		current = ApplyResponseTime(current, target, response, delta)
		ticks++
	}
	assert.Equal(t, target, current)
	assert.LessOrEqual(t, ticks, maxTicks)
}

func TestApplyResponseTimeZeroDisablesSlew(t *testing.T) {
	assert.Equal(t, 90.0, ApplyResponseTime(10, 90, 0, 1))
}

func TestValidateCurveAcceptsNormalized(t *testing.T) {
	c := &Curve{
		Points: []Point{
			{TempC: 60, Percent: 60},
			{TempC: 30, Percent: 30},
			{TempC: 30, Percent: 99}, // duplicate, should be dropped
		},
		MinPercent: 0,
		MaxPercent: 100,
	}

	norm := NormalizeCurve(c)
	require.NoError(t, ValidateCurve(norm))
	assert.Len(t, norm.Points, 2)
	assert.Equal(t, 30.0, norm.Points[0].TempC)
	assert.Equal(t, 30.0, norm.Points[0].Percent, "first point per temperature wins")
	assert.Equal(t, 60.0, norm.Points[1].TempC)
}

func TestNormalizeCurveIdempotent(t *testing.T) {
	c := &Curve{Points: []Point{{TempC: 50, Percent: 50}, {TempC: 10, Percent: 10}}}
	once := NormalizeCurve(c)
	twice := NormalizeCurve(once)
	assert.Equal(t, once.Points, twice.Points)

	for i := 1; i < len(twice.Points); i++ {
		assert.Greater(t, twice.Points[i].TempC, twice.Points[i-1].TempC)
	}
}

func TestValidateCurveRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		curve *Curve
	}{
		{"too few points", &Curve{Points: []Point{{TempC: 30, Percent: 30}}}},
		{"temp out of range", &Curve{Points: []Point{{TempC: -50, Percent: 0}, {TempC: 30, Percent: 30}}}},
		{"percent out of range", &Curve{Points: []Point{{TempC: 0, Percent: -1}, {TempC: 30, Percent: 30}}}},
		{"min exceeds max", &Curve{Points: []Point{{TempC: 0, Percent: 0}, {TempC: 30, Percent: 30}}, MinPercent: 80, MaxPercent: 20}},
		{"duplicate temps", &Curve{Points: []Point{{TempC: 30, Percent: 0}, {TempC: 30, Percent: 30}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateCurve(tt.curve))
		})
	}
}
