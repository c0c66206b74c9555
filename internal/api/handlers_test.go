// v0
// internal/api/handlers_test.go
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/Mohammed19J/Robomo-2.0/internal/devstate"
	"github.com/Mohammed19J/Robomo-2.0/internal/engine"
	"github.com/Mohammed19J/Robomo-2.0/internal/iaq"
	"github.com/Mohammed19J/Robomo-2.0/internal/smoke"
)

func newTestAPI(t *testing.T) (*engine.Engine, *mux.Router) {
	t.Helper()
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := devstate.NewStore(devstate.StandardDefaults(), 288)
	eng := engine.New(lg, store, engine.Settings{
		IAQ:      iaq.DefaultParams(),
		Smoke:    smoke.DefaultThresholds(),
		Defaults: devstate.StandardDefaults(),
	}, nil)
	h := NewHandlers(lg, eng, nil)
	return eng, NewRouter(h, nil)
}

func doJSON(t *testing.T, r *mux.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rr.Result().Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return payload
}

func TestHealthRoute(t *testing.T) {
	_, r := newTestAPI(t)

	rr := doJSON(t, r, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["status"]; got != "ok" {
		t.Fatalf("expected status ok, got %v", got)
	}
}

func TestComputeRequiresDeviceOrReadings(t *testing.T) {
	_, r := newTestAPI(t)

	rr := doJSON(t, r, http.MethodPost, "/baseline/compute", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["error"]; got != "device_id required" {
		t.Fatalf("expected device_id error, got %v", got)
	}
}

func TestComputeRejectsAllInvalidReadings(t *testing.T) {
	_, r := newTestAPI(t)

	body := `{"device_id":"lab-1","readings":[{"timestamp":"yesterday","co2":900}]}`
	rr := doJSON(t, r, http.MethodPost, "/baseline/compute", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	msg, _ := decodeBody(t, rr)["error"].(string)
	if !strings.Contains(msg, "no valid readings") {
		t.Fatalf("expected no-valid-readings error, got %q", msg)
	}
}

func TestComputeRoundTrip(t *testing.T) {
	_, r := newTestAPI(t)

	body := `{"device_id":"lab-1","readings":[{"timestamp":"2024-05-01T10:00:00Z","co2":900,"pm25":10,"voc":300,"temp_c":22,"rh":45}]}`
	rr := doJSON(t, r, http.MethodPost, "/baseline/compute", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var res engine.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.DeviceID != "lab-1" {
		t.Fatalf("expected device lab-1, got %q", res.DeviceID)
	}
	if res.IAQ.IAQScore <= 0 || res.IAQ.IAQScore >= 100 {
		t.Fatalf("unexpected iaq score %v", res.IAQ.IAQScore)
	}
	if res.Smoke.Reason != "below_threshold" {
		t.Fatalf("expected quiet smoke verdict, got %q", res.Smoke.Reason)
	}

	rr = doJSON(t, r, http.MethodGet, "/baseline/last/lab-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected cached result, got %d", rr.Code)
	}
	var cached engine.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &cached); err != nil {
		t.Fatalf("decode cached: %v", err)
	}
	if cached.IAQ.IAQScore != res.IAQ.IAQScore {
		t.Fatalf("cached score %v differs from computed %v", cached.IAQ.IAQScore, res.IAQ.IAQScore)
	}

	rr = doJSON(t, r, http.MethodGet, "/baseline/devices", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	devices, _ := decodeBody(t, rr)["devices"].([]any)
	if len(devices) != 1 {
		t.Fatalf("expected one tracked device, got %d", len(devices))
	}
}

func TestComputeQueryOverrides(t *testing.T) {
	_, r := newTestAPI(t)

	body := `{"device_id":"lab-1","readings":[{"timestamp":"2024-05-01T10:00:00Z","co2":900}]}`
	rr := doJSON(t, r, http.MethodPost, "/baseline/compute?volume_m3=500", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var res engine.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	want := 500.0 / 3600.0 * 480e-6 / 4.0e-6
	if math.Abs(res.Occupancy.NEstimate-want) > 1e-9 {
		t.Fatalf("expected estimate %v with overridden volume, got %v", want, res.Occupancy.NEstimate)
	}

	rr = doJSON(t, r, http.MethodPost, "/baseline/compute?volume_m3=roomy", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed override, got %d", rr.Code)
	}
	msg, _ := decodeBody(t, rr)["error"].(string)
	if !strings.Contains(msg, "volume_m3") {
		t.Fatalf("expected override error to name the parameter, got %q", msg)
	}
}

func TestLastUnknownDevice(t *testing.T) {
	_, r := newTestAPI(t)

	rr := doJSON(t, r, http.MethodGet, "/baseline/last/ghost", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["error"]; got != "no cached result for device" {
		t.Fatalf("expected cache miss error, got %v", got)
	}
}

func TestSubmitRejectsBadTimestamp(t *testing.T) {
	_, r := newTestAPI(t)

	rr := doJSON(t, r, http.MethodPost, "/baseline/submit", `{"device_id":"lab-1","timestamp":"noonish","co2":800}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	msg, _ := decodeBody(t, rr)["error"].(string)
	if !strings.Contains(msg, "timestamp") {
		t.Fatalf("expected timestamp error, got %q", msg)
	}
}

func TestModeRoutes(t *testing.T) {
	_, r := newTestAPI(t)

	rr := doJSON(t, r, http.MethodGet, "/baseline/mode", "")
	if got := decodeBody(t, rr)["mode"]; got != engine.ModeBaseline {
		t.Fatalf("expected baseline mode, got %v", got)
	}

	rr = doJSON(t, r, http.MethodPost, "/baseline/mode", `{"mode":"model-driven"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["mode"]; got != engine.ModeModelDriven {
		t.Fatalf("expected model-driven, got %v", got)
	}

	rr = doJSON(t, r, http.MethodPost, "/baseline/mode", `{"mode":"turbo"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", rr.Code)
	}

	rr = doJSON(t, r, http.MethodGet, "/baseline/mode", "")
	if got := decodeBody(t, rr)["mode"]; got != engine.ModeModelDriven {
		t.Fatalf("rejected switch must not change mode, got %v", got)
	}
}

func TestPredictOccupancyShape(t *testing.T) {
	_, r := newTestAPI(t)

	rr := doJSON(t, r, http.MethodPost, "/predict/occupancy", `{"device_id":"lab-1","timestamp":"2024-05-01T10:00:00Z","co2":564}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	payload := decodeBody(t, rr)
	n, _ := payload["n_estimate"].(float64)
	want := 250.0 / 3600.0 * 144e-6 / 4.0e-6
	if math.Abs(n-want) > 1e-9 {
		t.Fatalf("expected estimate %v, got %v", want, n)
	}
	if occupied, _ := payload["occupied"].(bool); !occupied {
		t.Fatalf("expected occupied for %v people", n)
	}
	conf, _ := payload["confidence"].(float64)
	if math.Abs(conf-want/5.0) > 1e-9 {
		t.Fatalf("expected confidence %v, got %v", want/5.0, conf)
	}
	if payload["probability"] != payload["confidence"] {
		t.Fatalf("probability should mirror confidence")
	}
	if payload["mode"] != engine.ModeBaseline {
		t.Fatalf("expected baseline mode marker, got %v", payload["mode"])
	}
}

func TestPredictSmokeShape(t *testing.T) {
	_, r := newTestAPI(t)

	rr := doJSON(t, r, http.MethodPost, "/predict/smoke", `{"device_id":"lab-1","timestamp":"2024-05-01T10:00:00Z","pm25":4}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	payload := decodeBody(t, rr)
	if present, _ := payload["smoke_present"].(bool); present {
		t.Fatalf("expected no smoke at pm2.5 of 4")
	}
	if conf, _ := payload["confidence"].(float64); conf != 0.0 {
		t.Fatalf("expected zero confidence, got %v", conf)
	}
	if payload["reason"] != "below_threshold" {
		t.Fatalf("expected below_threshold, got %v", payload["reason"])
	}
}

func TestPredictUnavailableInModelDrivenMode(t *testing.T) {
	eng, r := newTestAPI(t)
	if _, err := eng.SetMode(engine.ModeModelDriven); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	rr := doJSON(t, r, http.MethodPost, "/predict/health", `{"device_id":"lab-1","timestamp":"2024-05-01T10:00:00Z","co2":900}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, r := newTestAPI(t)

	rr := doJSON(t, r, http.MethodGet, "/baseline/compute", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
