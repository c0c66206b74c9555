// v0
// internal/smoke/smoke.go
package smoke

import (
	"math"
	"sort"
	"time"

	"github.com/Mohammed19J/Robomo-2.0/internal/iaq"
)

// riseLookback is how far behind the latest point the rise baseline sits.
const riseLookback = 10 * time.Minute

// State is the per-device alarm latch carried between assessments.
type State struct {
	Active           bool   `json:"active"`
	ConsecutiveBelow int    `json:"consecutive_below"`
	LastReason       string `json:"last_reason"`
}

// NewState returns the quiescent latch for a device with no alarm history.
func NewState() State {
	return State{LastReason: "normal"}
}

// Thresholds tune the alarm. An assessment latches when the latest NowCast
// value reaches Trigger after rising at least MinRise over the lookback
// window; it unlatches at Trigger-ClearDelta only after Consecutive
// assessments in a row stay at or below that level.
type Thresholds struct {
	Trigger     float64
	MinRise     float64
	ClearDelta  float64
	Consecutive int
}

// DefaultThresholds returns the stock alarm tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{Trigger: 35.0, MinRise: 10.0, ClearDelta: 5.0, Consecutive: 2}
}

// ThresholdsUsed echoes the effective thresholds into every verdict.
type ThresholdsUsed struct {
	Trigger            float64 `json:"trigger"`
	MinRise            float64 `json:"min_rise"`
	ClearThreshold     float64 `json:"clear_threshold"`
	HysteresisRequired int     `json:"hysteresis_required"`
}

// Verdict is a single assessment of the alarm latch.
type Verdict struct {
	SmokePresent    bool           `json:"smoke_present"`
	Reason          string         `json:"reason"`
	LastNowcastPM25 *float64       `json:"last_nowcast_pm25"`
	RawProbability  float64        `json:"raw_probability"`
	ThresholdsUsed  ThresholdsUsed `json:"thresholds_used"`
}

func (t Thresholds) used() ThresholdsUsed {
	return ThresholdsUsed{
		Trigger:            t.Trigger,
		MinRise:            t.MinRise,
		ClearThreshold:     t.Trigger - t.ClearDelta,
		HysteresisRequired: t.Consecutive,
	}
}

// Assess advances the latch one step over the NowCast PM2.5 series. The rise
// baseline is the most recent point at least the lookback behind the latest
// one, falling back to the earliest point for shorter windows. An empty
// series changes nothing and reports "insufficient".
func (t Thresholds) Assess(series []iaq.Point, prior State) (Verdict, State) {
	if len(series) == 0 {
		return Verdict{
			Reason:         "insufficient",
			ThresholdsUsed: t.used(),
		}, prior
	}

	points := make([]iaq.Point, len(series))
	copy(points, series)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Ts.Before(points[j].Ts) })

	latest := points[len(points)-1]
	cutoff := latest.Ts.Add(-riseLookback)
	baseline := points[0].Value
	for i := len(points) - 1; i >= 0; i-- {
		if !points[i].Ts.After(cutoff) {
			baseline = points[i].Value
			break
		}
	}

	rise := latest.Value - baseline
	clear := t.Trigger - t.ClearDelta

	next := prior
	switch {
	case latest.Value >= t.Trigger && rise >= t.MinRise:
		next.Active = true
		next.ConsecutiveBelow = 0
		next.LastReason = "rapid_rise"
	case prior.Active:
		if latest.Value <= clear {
			next.ConsecutiveBelow++
			if next.ConsecutiveBelow >= t.Consecutive {
				next.Active = false
				next.ConsecutiveBelow = 0
				next.LastReason = "clearing"
			} else {
				next.LastReason = "hysteresis_hold"
			}
		} else {
			next.ConsecutiveBelow = 0
			next.LastReason = "hysteresis_hold"
		}
	default:
		next.ConsecutiveBelow = 0
		next.LastReason = "below_threshold"
	}

	prob := (latest.Value - clear) / math.Max(t.Trigger-clear, 1e-6)
	prob = math.Max(0.0, math.Min(prob, 1.0))

	v := latest.Value
	return Verdict{
		SmokePresent:    next.Active,
		Reason:          next.LastReason,
		LastNowcastPM25: &v,
		RawProbability:  prob,
		ThresholdsUsed:  t.used(),
	}, next
}
