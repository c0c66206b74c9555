// v0
// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Mohammed19J/Robomo-2.0/internal/engine"
	"github.com/Mohammed19J/Robomo-2.0/internal/observability"
	"github.com/Mohammed19J/Robomo-2.0/internal/reading"
)

// Handlers owns the HTTP surface over the baseline engine.
type Handlers struct {
	lg      *slog.Logger
	eng     *engine.Engine
	metrics *observability.Metrics
	started time.Time
}

func NewHandlers(lg *slog.Logger, eng *engine.Engine, m *observability.Metrics) *Handlers {
	return &Handlers{lg: lg, eng: eng, metrics: m, started: time.Now()}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"mode":     h.eng.Mode(),
		"devices":  len(h.eng.Devices()),
		"uptime_s": int(time.Since(h.started).Seconds()),
	})
}

// Compute runs a batch assessment over the posted readings and commits
// the resulting device context.
func (h *Handlers) Compute(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	defer r.Body.Close()

	if len(req.Readings) == 0 && req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id required")
		return
	}

	ov, err := parseOverrides(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.eng.Compute(req, ov)
	if err != nil {
		if errors.Is(err, engine.ErrNoValidReadings) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.lg.Error("batch compute failed", "device", req.DeviceID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Submit appends one reading to the device history and returns a fresh
// assessment without committing resolved physics options.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var wire reading.Wire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	defer r.Body.Close()

	ov, err := parseOverrides(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.eng.Submit(wire, ov)
	if err != nil {
		if errors.Is(err, reading.ErrBadTimestamp) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.lg.Error("submit failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.metrics.ReadingIngested("http")
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) Last(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]
	res, ok := h.eng.Last(deviceID)
	if !ok {
		writeError(w, http.StatusNotFound, "no cached result for device")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) GetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"mode": h.eng.Mode()})
}

func (h *Handlers) SetMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	defer r.Body.Close()

	mode, err := h.eng.SetMode(body.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.lg.Info("mode switched", "mode", mode)
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode})
}

func (h *Handlers) Devices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"devices": h.eng.Devices()})
}

// PredictOccupancy serves the prediction route shape backed by the
// mass-balance estimate.
func (h *Handlers) PredictOccupancy(w http.ResponseWriter, r *http.Request) {
	res, ok := h.predictBaseline(w, r)
	if !ok {
		return
	}
	occ := res.Occupancy
	confidence := math.Min(1.0, occ.NEstimate/5.0)
	writeJSON(w, http.StatusOK, map[string]any{
		"occupied":    occ.NEstimate >= 1.0,
		"confidence":  confidence,
		"probability": confidence,
		"n_estimate":  occ.NEstimate,
		"ach_used":    occ.ACHUsed,
		"note":        occ.Note,
		"mode":        engine.ModeBaseline,
	})
}

// PredictHealth serves the prediction route shape backed by the IAQ score.
func (h *Handlers) PredictHealth(w http.ResponseWriter, r *http.Request) {
	res, ok := h.predictBaseline(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"health_index": res.IAQ.IAQScore,
		"action":       "BASELINE",
		"components":   res.IAQ,
		"mode":         engine.ModeBaseline,
	})
}

// PredictSmoke serves the prediction route shape backed by the alarm verdict.
func (h *Handlers) PredictSmoke(w http.ResponseWriter, r *http.Request) {
	res, ok := h.predictBaseline(w, r)
	if !ok {
		return
	}
	confidence := 0.0
	if res.Smoke.SmokePresent {
		confidence = 1.0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"smoke_present":   res.Smoke.SmokePresent,
		"confidence":      confidence,
		"probability":     confidence,
		"raw_probability": confidence,
		"threshold":       0.0,
		"reason":          res.Smoke.Reason,
		"mode":            engine.ModeBaseline,
	})
}

// predictBaseline runs the shared shim path. The prediction routes only
// answer in baseline mode; model-driven deployments host them elsewhere.
func (h *Handlers) predictBaseline(w http.ResponseWriter, r *http.Request) (engine.Result, bool) {
	if h.eng.Mode() == engine.ModeModelDriven {
		writeError(w, http.StatusServiceUnavailable, "model path not hosted here")
		return engine.Result{}, false
	}

	var wire reading.Wire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return engine.Result{}, false
	}
	defer r.Body.Close()

	res, err := h.eng.Submit(wire, engine.Overrides{})
	if err != nil {
		if errors.Is(err, reading.ErrBadTimestamp) {
			writeError(w, http.StatusBadRequest, err.Error())
			return engine.Result{}, false
		}
		h.lg.Error("predict submit failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return engine.Result{}, false
	}
	h.metrics.ReadingIngested("http")
	return res, true
}

// parseOverrides reads the per-call physics overrides from the query string.
func parseOverrides(r *http.Request) (engine.Overrides, error) {
	var ov engine.Overrides
	q := r.URL.Query()
	for _, f := range []struct {
		key string
		dst **float64
	}{
		{"volume_m3", &ov.VolumeM3},
		{"ach", &ov.ACH},
		{"cout_ppm", &ov.CoutPPM},
		{"g_per_person_m3_s", &ov.GPerson},
	} {
		raw := q.Get(f.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return engine.Overrides{}, fmt.Errorf("invalid %s: %q", f.key, raw)
		}
		*f.dst = &v
	}
	return ov, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
