// v0
// internal/iaq/nowcast.go
package iaq

import (
	"math"
	"sort"
	"time"
)

// nowcastWindow caps how many recent points feed one NowCast value.
const nowcastWindow = 12

// Point is one timestamped PM2.5 value.
type Point struct {
	Ts    time.Time
	Value float64
}

// Nowcast smooths a chronological PM2.5 series into a single value. The
// weight adapts to recent volatility: stable series keep a weight near 1 so
// all points count, noisy series drop toward the 0.5 floor so the newest
// points dominate. Returns false when the series is empty.
func Nowcast(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	if len(values) == 1 {
		return values[0], true
	}
	tail := values
	if len(tail) > nowcastWindow {
		tail = tail[len(tail)-nowcastWindow:]
	}
	cMax, cMin := tail[0], tail[0]
	for _, v := range tail[1:] {
		if v > cMax {
			cMax = v
		}
		if v < cMin {
			cMin = v
		}
	}
	weight := math.Max(0.5, 1.0-(cMax-cMin)/math.Max(cMax, 1e-6))
	var num, den float64
	for i := 0; i < len(tail); i++ {
		w := math.Pow(weight, float64(i))
		num += w * tail[len(tail)-1-i]
		den += w
	}
	if den == 0 {
		return tail[len(tail)-1], true
	}
	return num / den, true
}

// NowcastSeries produces the NowCast value after each point of a
// chronological series is folded into a rolling tail. The smoke detector
// consumes this to see rises as they would have looked in real time.
func NowcastSeries(points []Point) []Point {
	pts := make([]Point, len(points))
	copy(pts, points)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Ts.Before(pts[j].Ts) })

	tail := make([]float64, 0, nowcastWindow)
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		tail = append(tail, p.Value)
		if len(tail) > nowcastWindow {
			tail = tail[1:]
		}
		if v, ok := Nowcast(tail); ok {
			out = append(out, Point{Ts: p.Ts, Value: v})
		}
	}
	return out
}
