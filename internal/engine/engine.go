// v0
// internal/engine/engine.go
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Mohammed19J/Robomo-2.0/internal/devstate"
	"github.com/Mohammed19J/Robomo-2.0/internal/iaq"
	"github.com/Mohammed19J/Robomo-2.0/internal/observability"
	"github.com/Mohammed19J/Robomo-2.0/internal/occupancy"
	"github.com/Mohammed19J/Robomo-2.0/internal/reading"
	"github.com/Mohammed19J/Robomo-2.0/internal/smoke"
)

// Serving modes. Baseline serves the deterministic computations here;
// model-driven hands the prediction routes to an external model host.
const (
	ModeBaseline    = "baseline"
	ModeModelDriven = "model-driven"
)

var (
	ErrNoValidReadings = errors.New("no valid readings")
	ErrInvalidMode     = errors.New("invalid mode")
)

// Request is a batch computation request.
type Request struct {
	DeviceID string         `json:"device_id"`
	Readings []reading.Wire `json:"readings"`
	VolumeM3 *float64       `json:"volume_m3,omitempty"`
	ACH      *float64       `json:"ach,omitempty"`
	CoutPPM  *float64       `json:"cout_ppm,omitempty"`
	GPerson  *float64       `json:"g_per_person_m3_s,omitempty"`
}

// Result bundles the three per-device outputs of one computation.
type Result struct {
	DeviceID  string           `json:"device_id"`
	IAQ       iaq.Assessment   `json:"iaq"`
	Smoke     smoke.Verdict    `json:"smoke"`
	Occupancy occupancy.Result `json:"occupancy"`
}

// DeviceInfo is the cached-context listing exposed per device.
type DeviceInfo struct {
	DeviceID        string     `json:"device_id"`
	ACH             *float64   `json:"ach"`
	ACHSource       string     `json:"ach_source"`
	CoutPPM         float64    `json:"cout_ppm"`
	VolumeM3        float64    `json:"volume_m3"`
	LastNowcastPM25 *float64   `json:"last_nowcast_pm25"`
	LastUpdated     *time.Time `json:"last_updated"`
}

// Settings are the tuning knobs the engine runs with.
type Settings struct {
	IAQ      iaq.Params
	Smoke    smoke.Thresholds
	Defaults devstate.Defaults
}

// Engine turns sensor readings into baseline results and maintains the
// per-device context and the last-result cache.
type Engine struct {
	lg      *slog.Logger
	store   *devstate.Store
	iaq     iaq.Params
	smoke   smoke.Thresholds
	defs    devstate.Defaults
	metrics *observability.Metrics

	mu   sync.RWMutex
	mode string
	last map[string]Result
}

func New(lg *slog.Logger, store *devstate.Store, st Settings, m *observability.Metrics) *Engine {
	return &Engine{
		lg:      lg,
		store:   store,
		iaq:     st.IAQ,
		smoke:   st.Smoke,
		defs:    st.Defaults,
		metrics: m,
		mode:    ModeBaseline,
		last:    make(map[string]Result),
	}
}

// Submit processes one streamed reading: append it to the device's history,
// recompute over the whole buffer, and cache the result. Streamed readings
// never commit context updates, so a later batch request starts from the
// same cached physics.
func (e *Engine) Submit(w reading.Wire, ov Overrides) (Result, error) {
	sample, err := w.ToSample()
	if err != nil {
		e.metrics.ReadingDiscarded("invalid_timestamp")
		return Result{}, err
	}
	deviceID := sample.DeviceID

	start := time.Now()
	var result Result
	err = e.store.Update(deviceID, func(dev *devstate.Device) error {
		dev.AppendHistory(sample)
		st := dev.State()
		opts, origin := resolveOptions(ov, Request{}, st, e.defs)
		result, _ = e.computeBaseline(deviceID, dev.History(), opts, st.Smoke, origin, false)
		return nil
	})
	if err != nil {
		e.metrics.ComputeObserved("stream", "error", time.Since(start))
		return Result{}, err
	}

	e.setLast(deviceID, result)
	e.metrics.ComputeObserved("stream", "ok", time.Since(start))
	e.metrics.SmokeActive(deviceID, result.Smoke.SmokePresent)
	e.metrics.DevicesTracked(e.store.Len())
	e.lg.Debug("stream compute",
		"device_id", deviceID,
		"iaq_score", result.IAQ.IAQScore,
		"smoke", result.Smoke.SmokePresent,
		"n_estimate", result.Occupancy.NEstimate)
	return result, nil
}

// Compute processes a batch request: the supplied readings replace the
// device's history, context updates are committed, and a decay re-estimate
// of the ACH may run. Invalid readings are discarded individually; a batch
// with none left is rejected before the device is created.
func (e *Engine) Compute(req Request, ov Overrides) (Result, error) {
	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = "unknown"
	}

	samples, discarded := reading.ToSamples(req.Readings)
	for _, msg := range discarded {
		e.metrics.ReadingDiscarded("invalid_timestamp")
		e.lg.Debug("skipping invalid reading", "device_id", deviceID, "detail", msg)
	}
	if len(samples) == 0 {
		return Result{}, ErrNoValidReadings
	}

	start := time.Now()
	var result Result
	err := e.store.Update(deviceID, func(dev *devstate.Device) error {
		st := dev.State()
		opts, origin := resolveOptions(ov, req, st, e.defs)
		res, patch := e.computeBaseline(deviceID, samples, opts, st.Smoke, origin, true)
		dev.Apply(patch)
		dev.ReplaceHistory(samples)
		result = res
		return nil
	})
	if err != nil {
		e.metrics.ComputeObserved("batch", "error", time.Since(start))
		return Result{}, err
	}

	e.setLast(deviceID, result)
	e.metrics.ComputeObserved("batch", "ok", time.Since(start))
	e.metrics.SmokeActive(deviceID, result.Smoke.SmokePresent)
	e.metrics.DevicesTracked(e.store.Len())
	e.lg.Info("batch compute",
		"device_id", deviceID,
		"samples", len(samples),
		"iaq_score", result.IAQ.IAQScore,
		"smoke", result.Smoke.SmokePresent,
		"ach_source", result.Occupancy.ACHSource)
	return result, nil
}

// computeBaseline runs the three models over one sorted batch and prepares
// the context patch a committing caller applies.
func (e *Engine) computeBaseline(deviceID string, samples []reading.Sample, opts occupancy.Options, smokeState smoke.State, achOrigin string, allowUpdate bool) (Result, devstate.Patch) {
	reading.SortByTime(samples)
	last := samples[len(samples)-1]

	pmPoints := make([]iaq.Point, 0, len(samples))
	for _, s := range samples {
		if s.PM25 != nil {
			pmPoints = append(pmPoints, iaq.Point{Ts: s.Timestamp, Value: *s.PM25})
		}
	}
	nowcasts := iaq.NowcastSeries(pmPoints)
	var nowcastLatest *float64
	if len(nowcasts) > 0 {
		v := nowcasts[len(nowcasts)-1].Value
		nowcastLatest = &v
	}

	assessment := e.iaq.Build(nowcastLatest, last.CO2, last.VOC, last.TempC, last.RH)
	smokeVerdict, smokeNext := e.smoke.Assess(nowcasts, smokeState)
	occEstimate, occUpdate := occupancy.Estimate(samples, opts, achOrigin, allowUpdate)

	result := Result{
		DeviceID:  deviceID,
		IAQ:       assessment,
		Smoke:     smokeVerdict,
		Occupancy: occEstimate,
	}

	ts := last.Timestamp
	patch := devstate.Patch{
		Timestamp:   &ts,
		VolumeM3:    &opts.VolumeM3,
		CoutPPM:     &opts.CoutPPM,
		GPerson:     &opts.GPerson,
		NowcastPM25: nowcastLatest,
		Smoke:       &smokeNext,
	}
	if occUpdate.ACH != nil {
		patch.ACH = occUpdate.ACH
		src := occUpdate.ACHSource
		patch.ACHSource = &src
	}
	return result, patch
}

func (e *Engine) setLast(deviceID string, r Result) {
	e.mu.Lock()
	e.last[deviceID] = r
	e.mu.Unlock()
}

// Last returns the most recent result for the device, streamed or batch.
func (e *Engine) Last(deviceID string) (Result, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.last[deviceID]
	return r, ok
}

// Mode reports the current serving mode.
func (e *Engine) Mode() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// SetMode switches the serving mode. Anything but the two known modes is
// rejected and leaves the mode unchanged.
func (e *Engine) SetMode(mode string) (string, error) {
	if mode != ModeBaseline && mode != ModeModelDriven {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	e.mu.Lock()
	e.mode = mode
	e.mu.Unlock()
	e.metrics.SetMode(mode)
	e.lg.Info("mode set", "mode", mode)
	return mode, nil
}

// Devices lists the cached context of every tracked device.
func (e *Engine) Devices() []DeviceInfo {
	states := e.store.List()
	out := make([]DeviceInfo, 0, len(states))
	for _, st := range states {
		out = append(out, DeviceInfo{
			DeviceID:        st.DeviceID,
			ACH:             st.ACH,
			ACHSource:       st.ACHSource,
			CoutPPM:         st.CoutPPM,
			VolumeM3:        st.VolumeM3,
			LastNowcastPM25: st.LastNowcastPM25,
			LastUpdated:     st.LastUpdated,
		})
	}
	return out
}
