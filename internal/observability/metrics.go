// v0
// internal/observability/metrics.go
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	readingsIngested  *prometheus.CounterVec
	readingsDiscarded *prometheus.CounterVec
	computeTotal      *prometheus.CounterVec
	computeDuration   prometheus.Histogram
	smokeActive       *prometheus.GaugeVec
	devicesTracked    prometheus.Gauge
	mode              prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		readingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "baseline_readings_ingested_total",
			Help: "Total sensor readings accepted by ingest source.",
		}, []string{"source"}),
		readingsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "baseline_readings_discarded_total",
			Help: "Total sensor readings discarded by reason.",
		}, []string{"reason"}),
		computeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "baseline_compute_total",
			Help: "Total baseline computations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		computeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "baseline_compute_duration_seconds",
			Help:    "Histogram of baseline computation durations.",
			Buckets: prometheus.DefBuckets,
		}),
		// The device_id label grows with the device store, which never
		// evicts; baseline_devices_tracked watches the same growth.
		smokeActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "baseline_smoke_active",
			Help: "Smoke alarm latch per device (0 clear, 1 active).",
		}, []string{"device_id"}),
		devicesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baseline_devices_tracked",
			Help: "Number of devices with cached context.",
		}),
		mode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baseline_mode",
			Help: "Serving mode gauge (0 baseline, 1 model-driven).",
		}),
	}

	prometheus.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.readingsIngested,
		m.readingsDiscarded,
		m.computeTotal,
		m.computeDuration,
		m.smokeActive,
		m.devicesTracked,
		m.mode,
	)

	m.mode.Set(0)

	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) ReadingIngested(source string) {
	if m == nil {
		return
	}
	m.readingsIngested.WithLabelValues(source).Inc()
}

func (m *Metrics) ReadingDiscarded(reason string) {
	if m == nil {
		return
	}
	m.readingsDiscarded.WithLabelValues(reason).Inc()
}

func (m *Metrics) ComputeObserved(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.computeTotal.WithLabelValues(kind, outcome).Inc()
	m.computeDuration.Observe(duration.Seconds())
}

func (m *Metrics) SmokeActive(deviceID string, active bool) {
	if m == nil {
		return
	}
	v := 0.0
	if active {
		v = 1.0
	}
	m.smokeActive.WithLabelValues(deviceID).Set(v)
}

func (m *Metrics) DevicesTracked(n int) {
	if m == nil {
		return
	}
	m.devicesTracked.Set(float64(n))
}

func (m *Metrics) SetMode(mode string) {
	if m == nil {
		return
	}
	if mode == "model-driven" {
		m.mode.Set(1)
		return
	}
	m.mode.Set(0)
}
