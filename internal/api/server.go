// v0
// internal/api/server.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Mohammed19J/Robomo-2.0/internal/observability"
)

type Server struct {
	HTTP *http.Server
	Log  *slog.Logger
}

func NewServer(addr string, lg *slog.Logger, h *Handlers, m *observability.Metrics) *Server {
	r := NewRouter(h, m)
	hs := &http.Server{
		Addr:              addr,
		Handler:           handlers.LoggingHandler(os.Stdout, r),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{HTTP: hs, Log: lg}
}

func (s *Server) Start() error {
	s.Log.Info("http server starting", "addr", s.HTTP.Addr)
	return s.HTTP.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.Log.Info("http server stopping")
	return s.HTTP.Shutdown(ctx)
}

// NewRouter wires every route through the metrics wrapper.
func NewRouter(h *Handlers, m *observability.Metrics) *mux.Router {
	r := mux.NewRouter()

	handle := func(route, method string, fn http.HandlerFunc) {
		r.Handle(route, m.WrapHandler(route, fn)).Methods(method)
	}

	handle("/health", http.MethodGet, h.Health)
	handle("/status", http.MethodGet, h.Status)
	handle("/baseline/compute", http.MethodPost, h.Compute)
	handle("/baseline/submit", http.MethodPost, h.Submit)
	handle("/baseline/last/{deviceId}", http.MethodGet, h.Last)
	handle("/baseline/mode", http.MethodGet, h.GetMode)
	handle("/baseline/mode", http.MethodPost, h.SetMode)
	handle("/baseline/devices", http.MethodGet, h.Devices)
	handle("/predict/occupancy", http.MethodPost, h.PredictOccupancy)
	handle("/predict/health", http.MethodPost, h.PredictHealth)
	handle("/predict/smoke", http.MethodPost, h.PredictSmoke)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	return r
}
