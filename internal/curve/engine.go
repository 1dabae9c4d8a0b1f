package curve

import (
	"fmt"
	"math"
	"sort"
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sortedPoints returns c.Points sorted ascending by temperature, without
// mutating c.
func sortedPoints(c *Curve) []Point {
	pts := make([]Point, len(c.Points))
	copy(pts, c.Points)
	sort.Slice(pts, func(i, j int) bool { return pts[i].TempC < pts[j].TempC })
	return pts
}

// Interpolate computes the target fan percent for temperature given
// curve's points, using cosine-smoothed interpolation between bracketing
// points. lastOutput, when non-nil, enables hysteresis: a raw output
// within curve.HysteresisC of the last output holds at the last output
// instead of moving.
func Interpolate(c *Curve, temperature float64, lastOutput *float64) float64 {
	return interpolate(c, temperature, lastOutput, smoothCosine)
}

// InterpolateLinear is Interpolate using a linear blend between
// bracketing points instead of cosine smoothing.
func InterpolateLinear(c *Curve, temperature float64, lastOutput *float64) float64 {
	return interpolate(c, temperature, lastOutput, smoothLinear)
}

func smoothCosine(t float64) float64 { return (1 - math.Cos(t*math.Pi)) / 2 }
func smoothLinear(t float64) float64 { return t }

func interpolate(c *Curve, temperature float64, lastOutput *float64, smooth func(float64) float64) float64 {
	if len(c.Points) == 0 {
		return c.MinPercent
	}

	pts := sortedPoints(c)

	if len(pts) == 1 {
		return clamp(pts[0].Percent, c.MinPercent, c.MaxPercent)
	}

	var raw float64
	switch {
	case temperature <= pts[0].TempC:
		raw = pts[0].Percent
	case temperature >= pts[len(pts)-1].TempC:
		raw = pts[len(pts)-1].Percent
	default:
		i := 0
		for i < len(pts)-1 && !(temperature >= pts[i].TempC && temperature <= pts[i+1].TempC) {
			i++
		}
		p0, p1 := pts[i], pts[i+1]
		t := (temperature - p0.TempC) / (p1.TempC - p0.TempC)
		s := smooth(t)
		raw = p0.Percent + (p1.Percent-p0.Percent)*s
	}

	if lastOutput != nil && c.HysteresisC > 0 {
		if math.Abs(raw-*lastOutput) < c.HysteresisC {
			return clamp(*lastOutput, c.MinPercent, c.MaxPercent)
		}
	}

	return clamp(raw, c.MinPercent, c.MaxPercent)
}

// ApplyResponseTime slew-limits the move from current toward target so
// that no more than 100*deltaSeconds/responseSeconds percent is applied
// in one tick. A non-positive responseSeconds disables slew limiting and
// returns target unchanged. The result never overshoots target.
func ApplyResponseTime(current, target, responseSeconds, deltaSeconds float64) float64 {
	if responseSeconds <= 0 {
		return target
	}

	diff := target - current
	if diff == 0 {
		return current
	}

	maxChange := 100 * deltaSeconds / responseSeconds
	if math.Abs(diff) <= maxChange {
		return target
	}

	if diff > 0 {
		return current + maxChange
	}
	return current - maxChange
}

// ValidateCurve checks the invariants spec'd for FanCurve: at least two
// points, all temperatures and percents in range, min<=max, and no
// duplicate temperatures. It returns the first violation found.
func ValidateCurve(c *Curve) error {
	if len(c.Points) < 2 {
		return fmt.Errorf("curve must have at least 2 points, has %d", len(c.Points))
	}

	seen := make(map[float64]bool, len(c.Points))
	for _, p := range c.Points {
		if p.TempC < minTempC || p.TempC > maxTempC {
			return fmt.Errorf("point temperature %.2f out of range [%.0f,%.0f]", p.TempC, minTempC, maxTempC)
		}
		if p.Percent < minPct || p.Percent > maxPct {
			return fmt.Errorf("point percent %.2f out of range [%.0f,%.0f]", p.Percent, minPct, maxPct)
		}
		if seen[p.TempC] {
			return fmt.Errorf("duplicate temperature %.2f", p.TempC)
		}
		seen[p.TempC] = true
	}

	if c.MinPercent < minPct || c.MinPercent > maxPct {
		return fmt.Errorf("minPercent %.2f out of range [%.0f,%.0f]", c.MinPercent, minPct, maxPct)
	}
	if c.MaxPercent < minPct || c.MaxPercent > maxPct {
		return fmt.Errorf("maxPercent %.2f out of range [%.0f,%.0f]", c.MaxPercent, minPct, maxPct)
	}
	if c.MinPercent > c.MaxPercent {
		return fmt.Errorf("minPercent %.2f exceeds maxPercent %.2f", c.MinPercent, c.MaxPercent)
	}

	return nil
}

// NormalizeCurve returns a copy of c with points deduplicated by
// temperature (first point per temperature wins, preserving insertion
// order among kept points) and sorted ascending by temperature. All
// other fields pass through unchanged.
func NormalizeCurve(c *Curve) *Curve {
	out := *c

	seen := make(map[float64]bool, len(c.Points))
	kept := make([]Point, 0, len(c.Points))
	for _, p := range c.Points {
		if seen[p.TempC] {
			continue
		}
		seen[p.TempC] = true
		kept = append(kept, p)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].TempC < kept[j].TempC })

	out.Points = kept
	return &out
}
