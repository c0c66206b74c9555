// v0
// internal/occupancy/occupancy.go
package occupancy

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Mohammed19J/Robomo-2.0/internal/reading"
)

// ACH sources reported alongside every estimate.
const (
	SourceDefault  = "default"
	SourceProvided = "provided"
	SourceCached   = "cached"
	SourceDecay    = "decay_estimate"
)

// Options are the fully resolved physical parameters for one computation.
// Resolution (explicit override > request > cached device > default) happens
// upstream; by the time an estimate runs every field is a concrete value.
type Options struct {
	VolumeM3 float64
	ACH      float64
	CoutPPM  float64
	GPerson  float64
}

// Result is the occupant-count result for one computation.
type Result struct {
	NEstimate float64 `json:"n_estimate"`
	ACHUsed   float64 `json:"ach_used"`
	ACHSource string  `json:"ach_source"`
	Note      string  `json:"note"`
}

// ContextUpdate carries a freshly regressed ACH worth caching on the device.
// Zero value means the cached context should stay as it is.
type ContextUpdate struct {
	ACH       *float64
	ACHSource string
}

// regressionSlope fits an ordinary least-squares line and returns its slope.
// Degenerate inputs (fewer than two points, zero variance in x) return false.
func regressionSlope(x, y []float64) (float64, bool) {
	if len(x) < 2 || len(x) != len(y) {
		return 0, false
	}
	n := float64(len(x))
	var sumX, sumY, sumXY, sumX2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / denom, true
}

// EstimateACH infers the air-exchange rate from a CO₂ decay window by fitting
// log excess concentration against elapsed seconds. The decay model needs
// strictly positive excess over the outdoor baseline; any sample at or below
// it rejects the whole estimate. A flat or rising series returns false, as
// does a window of fewer than three samples.
func EstimateACH(times []time.Time, co2PPM []float64, coutPPM float64) (float64, bool) {
	if len(times) < 3 || len(times) != len(co2PPM) {
		return 0, false
	}
	elapsed := make([]float64, len(times))
	logs := make([]float64, len(co2PPM))
	for i := range co2PPM {
		excess := co2PPM[i] - coutPPM
		if excess <= 0 {
			return 0, false
		}
		elapsed[i] = times[i].Sub(times[0]).Seconds()
		logs[i] = math.Log(excess)
	}
	slope, ok := regressionSlope(elapsed, logs)
	if !ok || slope >= 0 {
		return 0, false
	}
	return -slope * 3600.0, true
}

// movingAverage smooths values with a trailing window for causal filtering.
func movingAverage(values []float64, window int) []float64 {
	if window <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for _, v := range values[start : i+1] {
			sum += v
		}
		out[i] = sum / float64(i+1-start)
	}
	return out
}

// Estimate runs the CO₂ mass-balance model over the device's batch. The
// derivative form n = (V·dC/dt + Q·(C−Cout)) / g applies when two smoothed
// points with positive elapsed time exist; otherwise the pure steady-state
// form n = Q·(C−Cout)/g takes over. allowEstimate additionally permits a
// decay re-estimate of the ACH, whose result above 0.1 supersedes the
// resolved value and is offered back for caching. The note trail records
// which branches ran.
func Estimate(samples []reading.Sample, opts Options, achOrigin string, allowEstimate bool) (Result, ContextUpdate) {
	type co2Point struct {
		ts time.Time
		v  float64
	}
	points := make([]co2Point, 0, len(samples))
	for _, s := range samples {
		if s.CO2 != nil {
			points = append(points, co2Point{ts: s.Timestamp, v: *s.CO2})
		}
	}

	var upd ContextUpdate
	if len(points) == 0 {
		return Result{
			NEstimate: 0.0,
			ACHUsed:   opts.ACH,
			ACHSource: achOrigin,
			Note:      "insufficient CO2 data",
		}, upd
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].ts.Before(points[j].ts) })
	times := make([]time.Time, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		times[i] = p.ts
		values[i] = p.v
	}
	smoothed := movingAverage(values, 3)

	achUsed := opts.ACH
	achSource := achOrigin
	notes := []string{"ach_source=" + achOrigin, "ma3_co2_smoothing"}

	if allowEstimate {
		if est, ok := EstimateACH(times, values, opts.CoutPPM); ok && est > 0.1 {
			achUsed = est
			achSource = SourceDecay
			upd.ACH = &est
			upd.ACHSource = SourceDecay
			notes = append(notes, "ach_estimated_from_decay")
		}
	}

	v := opts.VolumeM3
	q := achUsed * v / 3600.0
	coutFrac := opts.CoutPPM / 1e6
	g := math.Max(opts.GPerson, 1e-9)

	estimate := 0.0
	derivative := 0.0
	haveDerivative := false
	if len(smoothed) >= 2 {
		cT := smoothed[len(smoothed)-1] / 1e6
		cPrev := smoothed[len(smoothed)-2] / 1e6
		dt := times[len(times)-1].Sub(times[len(times)-2]).Seconds()
		if dt > 0 {
			dcdt := (cT - cPrev) / dt
			derivative = (v*dcdt + q*(cT-coutFrac)) / g
			haveDerivative = true
			if math.Abs(dcdt) < 1e-6 {
				notes = append(notes, "steady_state")
			}
		}
	}
	if haveDerivative && !math.IsInf(derivative, 0) && !math.IsNaN(derivative) {
		estimate = derivative
	} else {
		cT := smoothed[len(smoothed)-1] / 1e6
		estimate = q * (cT - coutFrac) / g
		notes = append(notes, "steady_state_estimate")
	}

	return Result{
		NEstimate: math.Max(0.0, estimate),
		ACHUsed:   achUsed,
		ACHSource: achSource,
		Note:      strings.Join(notes, "; "),
	}, upd
}
