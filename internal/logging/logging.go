// v0
// internal/logging/logging.go
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
)

// DualLogger writes structured logs to stdout and a service log file. The
// "console" format switches to tint's colored handler on stdout only.
type DualLogger struct {
	Logger *slog.Logger
	file   *os.File
}

// New builds the service logger. dir is created if missing; an unopenable
// log file degrades to stdout-only logging instead of failing startup.
func New(dir, format string) *DualLogger {
	if format == "console" {
		return &DualLogger{Logger: slog.New(tint.NewHandler(os.Stdout, nil))}
	}

	_ = os.MkdirAll(dir, 0o755)
	path := filepath.Join(dir, "baseline.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))
		lg.Error("log file open failed; using stdout only", "error", err)
		return &DualLogger{Logger: lg}
	}

	mw := io.MultiWriter(f, os.Stdout)
	lg := slog.New(slog.NewTextHandler(mw, &slog.HandlerOptions{}))
	log.SetOutput(mw)
	return &DualLogger{Logger: lg, file: f}
}

// Close releases the log file if one was opened.
func (d *DualLogger) Close() {
	if d.file != nil {
		_ = d.file.Close()
	}
}
