// v0
// internal/iaq/penalty.go
package iaq

import "math"

// CO2Penalty maps a CO₂ reading onto a 0–100 risk via a logistic curve
// centered at 800 ppm, mirroring ventilation health guidance. Absent input
// scores zero.
func CO2Penalty(co2PPM *float64) float64 {
	if co2PPM == nil {
		return 0.0
	}
	penalty := 100.0 / (1.0 + math.Exp(-0.018*(*co2PPM-800.0)))
	return clamp(penalty, 0.0, 100.0)
}

// VOCPenalty applies a two-stage quadratic ramp over the configured TVOC
// breakpoints: zero below the first, half the cap at the second, the full cap
// at and above the third. Absent input scores zero.
func (p Params) VOCPenalty(voc *float64) float64 {
	if voc == nil {
		return 0.0
	}
	b1, b2, b3 := p.VOCBreakpoints[0], p.VOCBreakpoints[1], p.VOCBreakpoints[2]
	cap := p.VOCRiskCap
	v := *voc
	switch {
	case v <= b1:
		return 0.0
	case v <= b2:
		fraction := (v - b1) / math.Max(b2-b1, 1e-6)
		return (cap * 0.5) * fraction * fraction
	case v <= b3:
		fraction := (v - b2) / math.Max(b3-b2, 1e-6)
		return (cap * 0.5) + (cap*0.5)*fraction*fraction
	default:
		return cap
	}
}

// ComfortPenalty sums a quadratic temperature term and a 1.5-power humidity
// term for excursions outside the comfort bands, clamped to 0–100. Either
// input may be absent and then contributes nothing.
func (p Params) ComfortPenalty(tempC, rh *float64) float64 {
	penalty := 0.0
	if tempC != nil {
		switch {
		case *tempC < p.TempRange.Low:
			delta := p.TempRange.Low - *tempC
			penalty += delta * delta * 2.0
		case *tempC > p.TempRange.High:
			delta := *tempC - p.TempRange.High
			penalty += delta * delta * 2.0
		}
	}
	if rh != nil {
		switch {
		case *rh < p.RHRange.Low:
			penalty += math.Pow(p.RHRange.Low-*rh, 1.5)
		case *rh > p.RHRange.High:
			penalty += math.Pow(*rh-p.RHRange.High, 1.5)
		}
	}
	return clamp(penalty, 0.0, 100.0)
}

func clamp(v, low, high float64) float64 {
	return math.Max(low, math.Min(v, high))
}
