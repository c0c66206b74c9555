// v0
// internal/breaker/breaker.go
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned on fast-fail while the breaker holds the circuit open.
var ErrOpen = errors.New("circuit open")

type Config struct {
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // wait before probing again
	SuccessesToClose int           // half-open successes required to close
}

// Breaker trips after MaxFailures consecutive failures, fast-fails while
// open, and closes again once SuccessesToClose probes succeed.
type Breaker struct {
	name string
	cfg  Config
	lg   *slog.Logger

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time

	probe func(ctx context.Context) error
}

func New(name string, cfg Config, lg *slog.Logger, probe func(ctx context.Context) error) *Breaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.SuccessesToClose < 1 {
		cfg.SuccessesToClose = 1
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Breaker{name: name, cfg: cfg, lg: lg, probe: probe}
}

// Execute runs op under the breaker policy. While open it fast-fails with
// ErrOpen until ResetTimeout has elapsed; the first call after that runs the
// probe (when configured) and then op in half-open state. A failure that
// trips the breaker is reported as ErrOpen so retry loops can back off.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	state := b.state
	openedAt := b.openedAt
	b.mu.Unlock()

	if state == Open {
		if time.Since(openedAt) < b.cfg.ResetTimeout {
			return ErrOpen
		}
		b.toHalfOpen()
		if b.probe != nil {
			if err := b.probe(ctx); err != nil {
				b.lg.Warn("breaker probe failed", "name", b.name, "err", err)
				b.reopen()
				return ErrOpen
			}
		}
	}

	if err := op(ctx); err != nil {
		b.onFailure(err)
		if b.State() == Open {
			return ErrOpen
		}
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) toHalfOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != HalfOpen {
		b.state = HalfOpen
		b.successes = 0
		b.lg.Info("breaker half-open", "name", b.name)
	}
}

func (b *Breaker) reopen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Open
	b.openedAt = time.Now()
	b.successes = 0
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessesToClose {
			b.state = Closed
			b.failures = 0
			b.successes = 0
			b.lg.Info("breaker closed", "name", b.name)
		}
	default:
		b.failures = 0
	}
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.state = Open
		b.openedAt = time.Now()
		b.successes = 0
		b.lg.Warn("breaker reopened", "name", b.name, "err", err)
	default:
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.state = Open
			b.openedAt = time.Now()
			b.lg.Warn("breaker open", "name", b.name, "failures", b.failures, "err", err)
		}
	}
}
